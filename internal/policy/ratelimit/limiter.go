// Package ratelimit throttles submissions to the publishing service with a
// token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// Config holds rate limiter configuration.
type Config struct {
	// PerMinute is the sustained submission rate. Zero or less disables
	// throttling.
	PerMinute float64
	// Burst is the number of submissions allowed back to back. Defaults to 1.
	Burst int
}

// Publisher wraps a feed.Publisher and delays Submit calls to respect the
// configured rate. Description reads and writes pass through unthrottled.
type Publisher struct {
	next    feed.Publisher
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ feed.Publisher = (*Publisher)(nil)

// New wraps next with a token bucket built from cfg.
func New(next feed.Publisher, cfg Config, logger *zap.Logger) *Publisher {
	limit := rate.Inf
	if cfg.PerMinute > 0 {
		limit = rate.Limit(cfg.PerMinute / 60)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Submit blocks until a token is available, then delegates. A cancelled ctx
// returns before the wrapped publisher is called.
func (p *Publisher) Submit(ctx context.Context, doc feed.Document) (string, error) {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		p.logger.Debug("submission throttled",
			zap.String("event_id", doc.EventID),
			zap.Duration("waited", waited),
		)
	}
	id, err := p.next.Submit(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	return id, nil
}

// Description implements feed.Publisher.
func (p *Publisher) Description(ctx context.Context) (string, error) {
	desc, err := p.next.Description(ctx)
	if err != nil {
		return "", fmt.Errorf("description: %w", err)
	}
	return desc, nil
}

// SetDescription implements feed.Publisher.
func (p *Publisher) SetDescription(ctx context.Context, text string) error {
	if err := p.next.SetDescription(ctx, text); err != nil {
		return fmt.Errorf("set description: %w", err)
	}
	return nil
}
