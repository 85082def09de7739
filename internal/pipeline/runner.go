package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/progress"
)

// AssemblerFactory builds the document assembler for an opened extract.
type AssemblerFactory func(queries feed.RecordQueries) feed.Assembler

// RunnerConfig controls a publish run across extracts.
type RunnerConfig struct {
	Extracts      []string
	Epoch         time.Time
	DryRun        bool
	SidebarUpdate bool
}

// Runner drives the publish loop over each configured extract in order and
// reports the run through the progress emitter.
type Runner struct {
	opener    feed.Opener
	assembler AssemblerFactory
	ledger    feed.Ledger
	publisher feed.Publisher
	emitter   progress.Emitter
	clock     feed.Clock
	ids       feed.IDGenerator
	out       io.Writer
	cfg       RunnerConfig
	logger    *zap.Logger
}

// NewRunner constructs a Runner. The ledger must already be loaded.
func NewRunner(
	opener feed.Opener,
	assembler AssemblerFactory,
	ledger feed.Ledger,
	publisher feed.Publisher,
	emitter progress.Emitter,
	clock feed.Clock,
	ids feed.IDGenerator,
	out io.Writer,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		opener:    opener,
		assembler: assembler,
		ledger:    ledger,
		publisher: publisher,
		emitter:   emitter,
		clock:     clock,
		ids:       ids,
		out:       out,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run publishes every extract and returns the summed tallies. The first
// fatal error stops the run; the tallies gathered so far are still returned.
func (r *Runner) Run(ctx context.Context) (feed.Result, error) {
	var total feed.Result
	if len(r.cfg.Extracts) == 0 {
		return total, errors.New("no extracts to publish")
	}
	runID, err := r.ids.NewRunID()
	if err != nil {
		return total, fmt.Errorf("new run id: %w", err)
	}
	started := r.clock.Now()
	r.emit(progress.Event{
		RunID:    progress.UUIDToBytes(runID),
		TS:       started,
		Stage:    progress.StageRunStart,
		Extracts: append([]string(nil), r.cfg.Extracts...),
		DryRun:   r.cfg.DryRun,
	})
	r.logger.Info("publish run started",
		zap.String("run_id", runID.String()),
		zap.Strings("extracts", r.cfg.Extracts),
		zap.Time("epoch", r.cfg.Epoch),
		zap.Bool("dry_run", r.cfg.DryRun),
	)

	for _, name := range r.cfg.Extracts {
		res, err := r.runExtract(ctx, runID, name)
		total.Add(res)
		if err != nil {
			r.finish(runID, started, total, err)
			return total, err
		}
	}

	r.logger.Info("publish run finished",
		zap.String("run_id", runID.String()),
		zap.Int("succeeded", total.Succeeded),
		zap.Int("failed", total.Failed),
		zap.Int("skipped", total.Skipped),
	)
	if r.cfg.SidebarUpdate && !r.cfg.DryRun {
		UpdateSidebar(ctx, r.publisher, r.clock, r.logger)
	}
	r.finish(runID, started, total, nil)
	return total, nil
}

func (r *Runner) runExtract(ctx context.Context, runID uuid.UUID, name string) (feed.Result, error) {
	logger := r.logger.With(zap.String("extract", name))
	ext, err := r.opener.Open(ctx, name)
	if err != nil {
		return feed.Result{}, fmt.Errorf("open extract %s: %w", name, err)
	}
	defer ext.Close()

	count, records, err := ext.Stream(ctx, r.cfg.Epoch)
	if err != nil {
		return feed.Result{}, fmt.Errorf("stream extract %s: %w", name, err)
	}
	r.emit(progress.Event{
		RunID:   progress.UUIDToBytes(runID),
		TS:      r.clock.Now(),
		Stage:   progress.StageExtractStart,
		Extract: name,
		Total:   count,
	})
	logger.Info("publishing extract", zap.Int("candidates", count))

	loop := NewLoop(
		r.assembler(ext),
		r.ledger,
		r.publisher,
		r.emitter,
		r.clock,
		r.out,
		Config{DryRun: r.cfg.DryRun, RunID: runID, Extract: name},
		logger,
	)
	res, err := loop.Run(ctx, count, records)
	r.emit(progress.Event{
		RunID:   progress.UUIDToBytes(runID),
		TS:      r.clock.Now(),
		Stage:   progress.StageExtractDone,
		Extract: name,
		Result:  res,
	})
	if err != nil {
		return res, fmt.Errorf("publish extract %s: %w", name, err)
	}
	logger.Info("extract done",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (r *Runner) finish(runID uuid.UUID, started time.Time, total feed.Result, err error) {
	now := r.clock.Now()
	evt := progress.Event{
		RunID:  progress.UUIDToBytes(runID),
		TS:     now,
		Stage:  progress.StageRunDone,
		Dur:    max(now.Sub(started), 0),
		Result: total,
	}
	if err != nil {
		evt.Stage = progress.StageRunError
		evt.Note = err.Error()
		r.logger.Error("publish run aborted",
			zap.String("run_id", runID.String()),
			zap.Int("succeeded", total.Succeeded),
			zap.Int("failed", total.Failed),
			zap.Int("skipped", total.Skipped),
			zap.Error(err),
		)
	}
	r.emit(evt)
}

func (r *Runner) emit(evt progress.Event) {
	r.emitter.Emit(evt)
}
