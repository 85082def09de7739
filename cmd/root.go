// Package cmd defines and implements the CLI commands for the ntsb-publisher
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/config"
	"github.com/JakeFAU/ntsb-publisher/internal/logging"
)

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app carries the loaded configuration and logger to subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp loads configuration and builds the logger. It is a variable so tests
// can inject a prepared app.
var newApp = func(cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return &app{cfg: cfg, logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "ntsb-publisher",
		Short: "Publishes NTSB aviation accident records as long-form documents.",
		Long: `ntsb-publisher reads the NTSB aviation accident extracts loaded into
Postgres, assembles one markdown document per accident, and publishes each
document exactly once to the configured feed.`,
		SilenceUsage: true,

		// Runs before every subcommand so each one receives a loaded app.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cfgFile)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app); ok && appInstance != nil {
				_ = appInstance.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(newPublishCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newPreviewCmd())
	cmd.AddCommand(newLedgerCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app, error) {
	appInstance, ok := ctx.Value(appKey).(*app)
	if !ok || appInstance == nil {
		return nil, errors.New("application not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "ntsb-publisher: %v\n", err)
		os.Exit(1)
	}
}
