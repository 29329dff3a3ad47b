package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derivekit/derivekit/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "derivekit",
	Short: "derivekit is a state machine for symbolic derivation sessions",
	Long: `derivekit tracks symbolic derivations as append-only step ledgers:
load a formula, apply operations, and archive the finished result with
searchable metadata.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default: user config dir)")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory for sessions and results (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// loadConfig resolves the effective configuration: file values under flag
// overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}
