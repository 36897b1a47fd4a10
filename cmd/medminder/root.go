package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/medminder/internal/infrastructure/config"
)

const (
	configEnvVar      = "MEDMINDER_CONFIG"
	defaultConfigPath = "configs/config.yaml"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "medminder",
	Short:         "medminder tracks medication doses, inventory and refills",
	Long:          "medminder records doses from NFC tags, MQTT service calls and the REST API, and sends reminders when doses are due or supplies run low.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigFile(), "Path to the YAML configuration file")
}

// defaultConfigFile honours MEDMINDER_CONFIG before the packaged default.
func defaultConfigFile() string {
	if p := os.Getenv(configEnvVar); p != "" {
		return p
	}
	return defaultConfigPath
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", cfgPath, err)
	}
	return cfg, nil
}
