package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/nerrad567/medminder/internal/history"
	"github.com/nerrad567/medminder/internal/infrastructure/logging"
	"github.com/nerrad567/medminder/internal/medication"
)

var diagnosticsWithState bool

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Print a support dump with tag IDs redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		opts := medication.ManagerOptions{Location: loc}
		if diagnosticsWithState && cfg.Database.Enabled {
			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-only use
			opts.Store = history.NewSQLiteRepository(db.DB)
		}

		managers := buildManagers(cmd.Context(), cfg.Entries, opts, logging.Discard())
		svc := medication.NewService(managers, medication.ServiceOptions{})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"version": version,
			"entries": svc.Diagnostics(),
		})
	},
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
	diagnosticsCmd.Flags().BoolVar(&diagnosticsWithState, "with-state", true, "Include persisted inventory and dose counts")
}
