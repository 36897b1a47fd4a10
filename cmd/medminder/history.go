package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/medminder/internal/history"
)

var (
	historyEntry      string
	historyMedication string
	historySince      time.Duration
	historyLimit      int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded doses, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Database.Enabled {
			return errNoDatabase
		}

		db, err := openDatabase(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // read-only use

		f := history.Filter{
			EntryID:      historyEntry,
			MedicationID: historyMedication,
			Limit:        historyLimit,
		}
		if historySince > 0 {
			f.Since = time.Now().Add(-historySince)
		}

		res, err := history.NewSQLiteRepository(db.DB).ListDoses(cmd.Context(), f)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TAKEN AT\tENTRY\tMEDICATION\tPERSON\tSOURCE\tLEFT")
		for _, d := range res.Doses {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				d.TakenAt.Local().Format("2006-01-02 15:04"), d.EntryID, d.MedicationID, d.PersonID, d.Source, d.InventoryAfter)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d doses\n", len(res.Doses), res.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyEntry, "entry", "e", "", "Only doses for this entry")
	historyCmd.Flags().StringVarP(&historyMedication, "medication", "m", "", "Only doses of this medication")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "Only doses within this window (e.g. 72h)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum doses to show")
}
