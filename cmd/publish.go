package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/api"
	"github.com/JakeFAU/ntsb-publisher/internal/clock/system"
	"github.com/JakeFAU/ntsb-publisher/internal/config"
	"github.com/JakeFAU/ntsb-publisher/internal/id/uuid"
	"github.com/JakeFAU/ntsb-publisher/internal/metrics"
	"github.com/JakeFAU/ntsb-publisher/internal/pipeline"
	"github.com/JakeFAU/ntsb-publisher/internal/progress"
	"github.com/JakeFAU/ntsb-publisher/internal/progress/sinks"
	"github.com/JakeFAU/ntsb-publisher/internal/store"
)

type publishFlags struct {
	dryRun   bool
	epoch    string
	extracts []string
}

// newPublishCmd creates the 'publish' subcommand.
func newPublishCmd() *cobra.Command {
	flags := &publishFlags{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publishes every unpublished accident record",
		Long: `Streams candidate accident records from each extract, skips the ones
already recorded in the ledger, assembles a document per record, and submits
it to the feed. The ledger is persisted after every successful submission.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "assemble documents without submitting or persisting the ledger")
	cmd.Flags().StringVar(&flags.epoch, "epoch", "", "only consider records changed after this date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&flags.extracts, "extract", nil, "extract to publish (repeatable)")
	return cmd
}

// applyPublishFlags overlays explicitly set flags on the loaded config.
func applyPublishFlags(cmd *cobra.Command, flags *publishFlags, cfg config.Config) (config.Config, error) {
	if cmd.Flags().Changed("dry-run") {
		cfg.Pipeline.DryRun = flags.dryRun
	}
	if cmd.Flags().Changed("epoch") {
		cfg.Source.Epoch = flags.epoch
	}
	if cmd.Flags().Changed("extract") {
		cfg.Source.Extracts = flags.extracts
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runPublish(cmd *cobra.Command, flags *publishFlags) (err error) {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.logger
	cfg, err := applyPublishFlags(cmd, flags, appInstance.cfg)
	if err != nil {
		return err
	}
	epoch, err := cfg.EpochTime()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fetched bool
	if cfg.Fetcher.Enabled && !cmd.Flags().Changed("extract") {
		names, fetchErr := fetchExtracts(ctx, cfg, cmd.ErrOrStderr(), logger.Named("fetcher"))
		if fetchErr != nil {
			return fetchErr
		}
		if len(names) > 0 {
			cfg.Source.Extracts = names
			fetched = true
		}
	}

	opener, err := newOpener(cfg.Source)
	if err != nil {
		return err
	}
	cfg.Source.Extracts, err = checkExtracts(ctx, opener, cfg.Source.Extracts, fetched, logger)
	if err != nil {
		return err
	}

	blobs, closeBlobs, err := openBlobStore(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeBlobs()) }()

	led, err := openLedger(ctx, blobs, cfg.Ledger, cfg.Pipeline.DryRun, logger.Named("ledger"))
	if err != nil {
		return err
	}

	pub, closePub, err := openPublisher(ctx, cfg.Publisher, blobs, logger.Named("publisher"))
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closePub()) }()

	runs, ready, closeRuns, err := openRunStore(ctx, cfg.Runs)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeRuns()) }()

	reg := metrics.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("init progress metrics: %w", err)
	}
	snapshot := sinks.NewSnapshotSink()
	fanout := progress.NewFanout(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		sinks.NewStoreSink(runs, logger.Named("runs")),
		snapshot,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = errors.Join(err, fanout.Close(closeCtx))
	}()

	if cfg.Server.Addr != "" {
		stopServer, serveErr := startStatusServer(ctx, cfg.Server.Addr, snapshot, runs, reg, ready, logger.Named("api"))
		if serveErr != nil {
			return serveErr
		}
		defer stopServer()
	}

	runner := pipeline.NewRunner(
		opener,
		assemblerFactory(cfg.Pipeline.MaxBodyLen, logger.Named("assembler")),
		led,
		pub,
		fanout,
		system.New(),
		uuid.New(),
		cmd.OutOrStdout(),
		pipeline.RunnerConfig{
			Extracts:      cfg.Source.Extracts,
			Epoch:         epoch,
			DryRun:        cfg.Pipeline.DryRun,
			SidebarUpdate: cfg.Pipeline.SidebarUpdate,
		},
		logger.Named("pipeline"),
	)
	result, err := runner.Run(ctx)
	logger.Info("publish finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("ledger_entries", led.Len()),
		zap.Bool("dry_run", cfg.Pipeline.DryRun),
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// startStatusServer serves the status API until the returned stop function
// is called or ctx is done.
func startStatusServer(
	ctx context.Context,
	addr string,
	snapshot api.SnapshotSource,
	runs store.RunRepository,
	reg *prometheus.Registry,
	ready api.ReadinessCheck,
	logger *zap.Logger,
) (func(), error) {
	httpMetrics, err := metrics.NewHTTP(reg)
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	server := api.NewServer(snapshot, runs, reg, httpMetrics, ready, logger)
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := api.ListenAndServe(srvCtx, addr, server.Handler(), logger); err != nil {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
