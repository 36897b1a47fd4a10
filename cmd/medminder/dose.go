package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/medminder/internal/history"
	"github.com/nerrad567/medminder/internal/infrastructure/logging"
	"github.com/nerrad567/medminder/internal/medication"
	"github.com/nerrad567/medminder/internal/sink"
)

var errNoDatabase = errors.New("database is disabled in config")

var doseEntry string

var doseCmd = &cobra.Command{
	Use:   "dose <medication>",
	Short: "Record a dose directly in the database",
	Long:  "Record a dose directly in the database. Use this while the service is stopped; a running service keeps its own copy of the state.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *medication.Service) error {
			res, err := svc.RecordDose(ctx, medication.ServiceRequest{EntryID: doseEntry, MedicationID: args[0]}, medication.SourceCLI)
			if err != nil {
				return err
			}
			printState(cmd, res.State)
			if !res.Recorded {
				return fmt.Errorf("%s already taken %d/%d today", res.State.DisplayName, res.State.DosesToday, res.State.DosesPerDay)
			}
			return nil
		})
	},
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory <medication> <count>",
	Short: "Set the inventory of a medication directly in the database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: count must be a whole number", medication.ErrInvalidInventory)
		}
		return withService(cmd, func(ctx context.Context, svc *medication.Service) error {
			st, err := svc.UpdateInventory(ctx, medication.ServiceRequest{EntryID: doseEntry, MedicationID: args[0], Inventory: &count}, medication.SourceCLI)
			if err != nil {
				return err
			}
			printState(cmd, st)
			return nil
		})
	},
}

// withService builds a store-backed service for one-shot commands.
// Notifications go to stderr.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *medication.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return errNoDatabase
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // one-shot command

	log := logging.NewWithWriter(cfg.Logging, version, cmd.ErrOrStderr())
	opts := medication.ManagerOptions{
		Notifier: sink.LogNotifier{Logger: log},
		Store:    history.NewSQLiteRepository(db.DB),
		Location: loc,
	}
	svc := medication.NewService(buildManagers(ctx, cfg.Entries, opts, logging.Discard()), medication.ServiceOptions{})
	return fn(ctx, svc)
}

func printState(cmd *cobra.Command, st medication.State) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [%s/%s]: %s, %d/%d today, %d left, %d refills\n",
		st.DisplayName, st.EntryID, st.ID, st.Status, st.DosesToday, st.DosesPerDay, st.Inventory, st.RefillsRemaining)
}

func init() {
	rootCmd.AddCommand(doseCmd, inventoryCmd)
	for _, c := range []*cobra.Command{doseCmd, inventoryCmd} {
		c.Flags().StringVarP(&doseEntry, "entry", "e", "", "Entry ID (default: first entry with the medication)")
	}
}
