package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/medminder/internal/infrastructure/database"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations, or roll back the latest with --down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Database.Enabled {
			return errNoDatabase
		}

		db, err := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // one-shot command

		ctx := cmd.Context()
		if migrateDown {
			err = db.MigrateDown(ctx)
		} else {
			err = db.Migrate(ctx)
		}
		if err != nil {
			return err
		}

		applied, pending, err := db.GetMigrationStatus(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range applied {
			fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
		}
		for _, m := range pending {
			fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back the most recent migration")
}
