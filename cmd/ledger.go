package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/config"
	"github.com/JakeFAU/ntsb-publisher/internal/ledger"
)

// newLedgerCmd creates the 'ledger' subcommand and its children.
func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspects and repairs the publish ledger",
	}
	cmd.AddCommand(newLedgerListCmd())
	cmd.AddCommand(newLedgerPendingCmd())
	cmd.AddCommand(newLedgerResolveCmd())
	return cmd
}

func newLedgerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Prints every published event identity, one per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, true, func(_ context.Context, led *ledger.Ledger, _ *zap.Logger) error {
				return printLines(cmd.OutOrStdout(), led.IDs())
			})
		},
	}
}

func newLedgerPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Prints the event identities left unresolved by a crashed run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, true, func(_ context.Context, led *ledger.Ledger, _ *zap.Logger) error {
				return printLines(cmd.OutOrStdout(), led.Pending())
			})
		},
	}
}

func newLedgerResolveCmd() *cobra.Command {
	var published bool
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Clears unresolved submissions so they stop being skipped",
		Long: `Clears the write-ahead marker left by a run that stopped mid-submission.
Check the feed first. Without --published the cleared events are retried by
the next publish run; with --published they are recorded in the ledger and
never submitted again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, false, func(ctx context.Context, led *ledger.Ledger, logger *zap.Logger) error {
				return resolvePending(ctx, led, published, cmd.OutOrStdout(), logger)
			})
		},
	}
	cmd.Flags().BoolVar(&published, "published", false, "record the unresolved events as published instead of retrying them")
	return cmd
}

// withLedger opens the configured ledger with its write-ahead marker and runs fn.
func withLedger(cmd *cobra.Command, readOnly bool, fn func(context.Context, *ledger.Ledger, *zap.Logger) error) (err error) {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := appInstance.logger.Named("ledger")

	blobs, closeBlobs, err := openBlobStore(ctx, appInstance.cfg.Ledger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeBlobs()) }()

	led, err := openLedger(ctx, blobs, markerConfig(appInstance.cfg.Ledger), readOnly, logger)
	if err != nil {
		return err
	}
	return fn(ctx, led, logger)
}

// markerConfig enables write-ahead so the pending marker is always read.
func markerConfig(cfg config.LedgerConfig) config.LedgerConfig {
	cfg.WriteAhead = true
	return cfg
}

func resolvePending(ctx context.Context, led *ledger.Ledger, published bool, out io.Writer, logger *zap.Logger) error {
	resolved, err := led.ResolvePending(ctx, published)
	if err != nil {
		return fmt.Errorf("resolve pending: %w", err)
	}
	if err := printLines(out, resolved); err != nil {
		return err
	}
	logger.Info("ledger resolve finished",
		zap.Int("resolved", len(resolved)),
		zap.Bool("published", published),
		zap.Int("ledger_entries", led.Len()),
	)
	return nil
}

func printLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}
