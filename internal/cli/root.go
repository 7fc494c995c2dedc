// Package cli is the command-line entrypoint: serve runs the HTTP API,
// migrate creates or updates the schema.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Shared finance ledger server",
	SilenceUsage:  true,
	SilenceErrors: true,
	// no subcommand means serve
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveCmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default ./config.yaml)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger every subcommand needs.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
