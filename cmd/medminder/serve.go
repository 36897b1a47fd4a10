package main

import (
	"github.com/spf13/cobra"

	"github.com/nerrad567/medminder/internal/infrastructure/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the medication service until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Bootstrap logger until config is loaded.
		logging.Default().Info("loading configuration", "path", cfgPath)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log := logging.New(cfg.Logging, version)
		log.Info("starting medminder",
			"version", version,
			"commit", commit,
			"build_date", date,
			"site", cfg.Site.ID,
		)
		return run(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
