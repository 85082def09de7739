// Package pipeline implements the sequential publish loop and the runner that
// drives it across extracts.
package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/progress"
)

// Config controls Loop behavior.
type Config struct {
	// DryRun builds every document but never submits or touches the ledger.
	DryRun bool
	// RunID and Extract label the progress events of this pass.
	RunID   uuid.UUID
	Extract string
}

// Loop publishes the candidates of one extract, one at a time.
type Loop struct {
	assembler feed.Assembler
	ledger    feed.Ledger
	pending   feed.PendingTracker
	publisher feed.Publisher
	emitter   progress.Emitter
	clock     feed.Clock
	out       io.Writer
	cfg       Config
	logger    *zap.Logger
}

// NewLoop constructs a Loop. The ledger's write-ahead marker is used when it
// implements feed.PendingTracker. A nil out discards the progress bar.
func NewLoop(
	assembler feed.Assembler,
	ledger feed.Ledger,
	publisher feed.Publisher,
	emitter progress.Emitter,
	clock feed.Clock,
	out io.Writer,
	cfg Config,
	logger *zap.Logger,
) *Loop {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pending, _ := ledger.(feed.PendingTracker)
	return &Loop{
		assembler: assembler,
		ledger:    ledger,
		pending:   pending,
		publisher: publisher,
		emitter:   emitter,
		clock:     clock,
		out:       out,
		cfg:       cfg,
		logger:    logger,
	}
}

type record struct {
	outcome progress.Outcome
	bytes   int64
	dur     time.Duration
}

// Run consumes records in source order. Per-record failures are counted and
// the loop moves on; errors wrapping feed.ErrFatal and context cancellation
// stop it and are returned with the tallies so far.
func (l *Loop) Run(ctx context.Context, total int, records iter.Seq2[feed.Candidate, error]) (feed.Result, error) {
	var result feed.Result
	bar := progress.NewBar(l.out, total)
	bar.Start()
	defer bar.Finish()

	completed := 0
	for candidate, streamErr := range records {
		if err := ctx.Err(); err != nil {
			return result, err //nolint:wrapcheck
		}
		rec, err := l.process(ctx, candidate, streamErr)
		if err != nil {
			return result, err
		}
		switch rec.outcome {
		case progress.OutcomeSucceeded:
			result.Succeeded++
		case progress.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		completed++
		bar.Update(completed, result.Failed)
		l.emitter.Emit(progress.Event{
			RunID:     progress.UUIDToBytes(l.cfg.RunID),
			TS:        l.clock.Now(),
			Stage:     progress.StageRecord,
			Extract:   l.cfg.Extract,
			EventID:   candidate.EventID,
			Outcome:   rec.outcome,
			Completed: completed,
			Total:     total,
			Bytes:     rec.bytes,
			Dur:       rec.dur,
			Result:    result,
		})
	}
	return result, nil
}

func (l *Loop) process(ctx context.Context, candidate feed.Candidate, streamErr error) (record, error) {
	failed := record{outcome: progress.OutcomeFailed}
	if streamErr != nil {
		if errors.Is(streamErr, feed.ErrFatal) {
			return record{}, streamErr
		}
		l.logger.Warn("candidate excluded", zap.Error(streamErr))
		return failed, nil
	}

	id := candidate.EventID
	if l.ledger.Contains(id) {
		l.logger.Debug("already published", zap.String("event_id", id))
		return record{outcome: progress.OutcomeSkipped}, nil
	}
	if l.pending != nil && l.pending.IsPending(id) {
		l.logger.Warn("skipping possibly published record",
			zap.String("event_id", id),
			zap.String("ntsb_no", ntsbNumber(candidate.NTSBNumber)),
		)
		return record{outcome: progress.OutcomeSkipped}, nil
	}

	doc, err := l.assembler.Assemble(ctx, candidate)
	if err != nil {
		if errors.Is(err, feed.ErrFatal) {
			return record{}, err
		}
		l.logger.Error("document assembly failed",
			zap.String("event_id", id),
			zap.String("ntsb_no", ntsbNumber(candidate.NTSBNumber)),
			zap.Error(err),
		)
		return failed, nil
	}
	size := int64(len(doc.Body))

	if l.cfg.DryRun {
		l.logger.Info("dry run: document not submitted",
			zap.String("event_id", id),
			zap.String("title", doc.Title),
			zap.Int64("bytes", size),
		)
		return record{outcome: progress.OutcomeSucceeded, bytes: size}, nil
	}
	return l.submit(ctx, doc, size)
}

func (l *Loop) submit(ctx context.Context, doc feed.Document, size int64) (record, error) {
	if l.pending != nil {
		if err := l.pending.MarkPending(ctx, doc.EventID); err != nil {
			return record{}, err //nolint:wrapcheck
		}
	}
	start := l.clock.Now()
	messageID, err := l.publisher.Submit(ctx, doc)
	dur := l.clock.Now().Sub(start)
	if err != nil {
		l.logger.Error("submission failed",
			zap.String("event_id", doc.EventID),
			zap.String("ntsb_no", ntsbNumber(doc.NTSBNumber)),
			zap.Error(err),
		)
		if err := l.clearPending(ctx); err != nil {
			return record{}, err
		}
		return record{outcome: progress.OutcomeFailed, dur: dur}, nil
	}

	l.ledger.Append(doc.EventID)
	if err := l.ledger.Persist(ctx); err != nil {
		return record{}, err //nolint:wrapcheck
	}
	if err := l.clearPending(ctx); err != nil {
		return record{}, err
	}
	l.logger.Info("document published",
		zap.String("event_id", doc.EventID),
		zap.String("ntsb_no", ntsbNumber(doc.NTSBNumber)),
		zap.String("message_id", messageID),
		zap.Duration("dur", dur),
	)
	return record{outcome: progress.OutcomeSucceeded, bytes: size, dur: dur}, nil
}

func (l *Loop) clearPending(ctx context.Context) error {
	if l.pending == nil {
		return nil
	}
	return l.pending.ClearPending(ctx) //nolint:wrapcheck
}

func ntsbNumber(n *string) string {
	if n == nil {
		return ""
	}
	return *n
}
