package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls sink delivery for the Fanout.
//   - SinkTimeout: per-sink timeout for each delivery (default 10s).
//   - BaseContext: parent context passed to sink calls (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	SinkTimeout time.Duration
	BaseContext context.Context
	Logger      *zap.Logger
}

const defaultSinkTimeout = 10 * time.Second

// Fanout delivers each Event synchronously to every registered sink, in
// registration order. Sink failures are logged and never reach the caller.
type Fanout struct {
	cfg    Config
	sinks  []Sink
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewFanout returns a Fanout over the supplied sinks.
func NewFanout(cfg Config, sinks ...Sink) *Fanout {
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		logger: logger,
	}
}

// Emit validates evt and hands it to every sink before returning. Invalid
// events and events emitted after Close are discarded.
func (f *Fanout) Emit(evt Event) {
	if f == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		f.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	batch := []Event{evt}
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(f.cfg.BaseContext, f.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			f.logger.Warn("progress sink consume failed",
				zap.String("stage", string(evt.Stage)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close closes every sink. It is safe to call multiple times.
func (f *Fanout) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			f.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
	return nil
}
