package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/ntsb-publisher/internal/progress"
)

// LogSink emits structured logs for each progress event. Record events are
// logged at debug level so long runs stay readable at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		level := zapcore.InfoLevel
		switch evt.Stage {
		case progress.StageRunStart:
			fields = append(fields, zap.Strings("extracts", evt.Extracts), zap.Bool("dry_run", evt.DryRun))
		case progress.StageExtractStart:
			fields = append(fields, zap.String("extract", evt.Extract), zap.Int("total", evt.Total))
		case progress.StageRecord:
			level = zapcore.DebugLevel
			if evt.Outcome == progress.OutcomeFailed {
				level = zapcore.WarnLevel
			}
			fields = append(fields,
				zap.String("extract", evt.Extract),
				zap.String("event_id", evt.EventID),
				zap.String("outcome", string(evt.Outcome)),
				zap.Int("completed", evt.Completed),
				zap.Int("total", evt.Total),
				zap.Int64("bytes", evt.Bytes),
				zap.Duration("dur", evt.Dur),
			)
		case progress.StageExtractDone:
			fields = append(fields, zap.String("extract", evt.Extract))
			fields = append(fields, resultFields(evt)...)
		case progress.StageRunDone:
			fields = append(fields, resultFields(evt)...)
			fields = append(fields, zap.Duration("dur", evt.Dur))
		case progress.StageRunError:
			level = zapcore.ErrorLevel
			fields = append(fields, resultFields(evt)...)
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if ce := s.logger.Check(level, "progress event"); ce != nil {
			ce.Write(fields...)
		}
	}
	return nil
}

func resultFields(evt progress.Event) []zap.Field {
	return []zap.Field{
		zap.Int("succeeded", evt.Result.Succeeded),
		zap.Int("failed", evt.Result.Failed),
		zap.Int("skipped", evt.Result.Skipped),
	}
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
