package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/medminder/internal/medication"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and report records that would be skipped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config: %s\n", cfgPath)
		fmt.Fprintf(out, "Site: %s (%s)\n", cfg.Site.Name, cfg.Site.ID)

		skipped := 0
		for _, entry := range cfg.Entries {
			reg, errs := medication.Build(entry, nil)
			fmt.Fprintf(out, "Entry %s: %d people, %d medications\n", entry.ID, len(reg.People()), len(reg.Medications()))
			for _, e := range errs {
				fmt.Fprintf(out, "  skipped: %v\n", e)
			}
			for _, med := range reg.Medications() {
				if _, err := medication.ParseDoseTime(med.DoseTime); err != nil {
					fmt.Fprintf(out, "  warning: %s: no reminders (%v)\n", med.ID, err)
				}
			}
			skipped += len(errs)
		}

		if skipped > 0 {
			return fmt.Errorf("%d record(s) would be skipped", skipped)
		}
		fmt.Fprintln(out, "OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}
