// Package ledger persists the set of event identities that have already been
// published, so re-runs over overlapping extracts never publish twice.
package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/storage"
)

// DefaultObject is the ledger object name used when none is configured.
const DefaultObject = "submitted.csv"

const pendingSuffix = ".pending"

// Config controls Ledger behavior.
type Config struct {
	// Object names the ledger object in the blob store.
	Object string
	// WriteAhead records the identity being submitted in a sibling
	// "<Object>.pending" object until the submission resolves.
	WriteAhead bool
	// ReadOnly loads a missing ledger as empty without creating it.
	ReadOnly bool
}

// Ledger is the in-memory identity set plus its persisted copy. It is owned
// by a single publish loop.
type Ledger struct {
	store  storage.BlobStore
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	ids      []string
	set      map[string]struct{}
	stale    []string
	inflight string
}

var (
	_ feed.Ledger         = (*Ledger)(nil)
	_ feed.PendingTracker = (*Ledger)(nil)
)

// New constructs a Ledger. Call Load before use.
func New(store storage.BlobStore, cfg Config, logger *zap.Logger) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		cfg.Object = DefaultObject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		cfg:    cfg,
		logger: logger,
		set:    make(map[string]struct{}),
	}, nil
}

// Load reads the ledger object, creating it empty when missing unless the
// ledger is read-only, and any unresolved write-ahead marker. Failures wrap
// feed.ErrFatal.
func (l *Ledger) Load(ctx context.Context) error {
	ids, err := l.read(ctx, l.cfg.Object)
	if errors.Is(err, storage.ErrNotFound) && !l.cfg.ReadOnly {
		if err := l.store.Put(ctx, l.cfg.Object, nil); err != nil {
			return fmt.Errorf("%w: create ledger %s: %w", feed.ErrFatal, l.cfg.Object, err)
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("%w: load ledger %s: %w", feed.ErrFatal, l.cfg.Object, err)
	}

	var stale []string
	if l.cfg.WriteAhead {
		stale, err = l.read(ctx, l.pendingObject())
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: load pending marker: %w", feed.ErrFatal, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = l.ids[:0]
	l.set = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		l.appendLocked(id)
	}
	l.stale = l.stale[:0]
	for _, id := range stale {
		if _, done := l.set[id]; !done {
			l.stale = append(l.stale, id)
		}
	}

	l.logger.Info("ledger loaded",
		zap.String("object", l.cfg.Object),
		zap.Int("entries", len(l.ids)),
	)
	for _, id := range l.stale {
		l.logger.Warn("event has an unresolved submission and will not be retried",
			zap.String("event_id", id),
		)
	}
	return nil
}

// Contains reports whether id has been published.
func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.set[id]
	return ok
}

// Append adds id to the in-memory set. Duplicates are ignored.
func (l *Ledger) Append(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(id)
}

func (l *Ledger) appendLocked(id string) {
	if _, ok := l.set[id]; ok {
		return
	}
	l.set[id] = struct{}{}
	l.ids = append(l.ids, id)
}

// Persist rewrites the ledger object with every identity in insertion order.
// Failures wrap feed.ErrFatal.
func (l *Ledger) Persist(ctx context.Context) error {
	l.mu.RLock()
	data, err := encode(l.ids)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: encode ledger: %w", feed.ErrFatal, err)
	}
	if err := l.store.Put(ctx, l.cfg.Object, data); err != nil {
		return fmt.Errorf("%w: persist ledger %s: %w", feed.ErrFatal, l.cfg.Object, err)
	}
	return nil
}

// Len returns the number of published identities.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// IDs returns a copy of the identities in insertion order.
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.ids...)
}

// Pending returns the identities whose submission outcome is unknown.
func (l *Ledger) Pending() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := append([]string(nil), l.stale...)
	if l.inflight != "" {
		out = append(out, l.inflight)
	}
	return out
}

// IsPending reports whether id was left unresolved by an earlier run.
func (l *Ledger) IsPending(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.stale {
		if s == id {
			return true
		}
	}
	return false
}

// MarkPending records id as being submitted. It is a no-op when write-ahead
// is disabled.
func (l *Ledger) MarkPending(ctx context.Context, id string) error {
	if !l.cfg.WriteAhead {
		return nil
	}
	l.mu.Lock()
	l.inflight = id
	l.mu.Unlock()
	return l.writePending(ctx)
}

// ClearPending resolves the in-flight submission.
func (l *Ledger) ClearPending(ctx context.Context) error {
	if !l.cfg.WriteAhead {
		return nil
	}
	l.mu.Lock()
	l.inflight = ""
	l.mu.Unlock()
	return l.writePending(ctx)
}

// ResolvePending drops the identities left unresolved by an earlier run and
// rewrites the marker. When published is true they are first appended to the
// ledger and persisted, so they are never submitted again; otherwise the next
// run retries them. It returns the resolved identities.
func (l *Ledger) ResolvePending(ctx context.Context, published bool) ([]string, error) {
	if l.cfg.ReadOnly {
		return nil, fmt.Errorf("ledger %s is read-only", l.cfg.Object)
	}
	l.mu.Lock()
	resolved := append([]string(nil), l.stale...)
	if published {
		for _, id := range resolved {
			l.appendLocked(id)
		}
	}
	l.mu.Unlock()
	if len(resolved) == 0 {
		return nil, nil
	}
	if published {
		if err := l.Persist(ctx); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	l.stale = l.stale[:0]
	l.mu.Unlock()
	if err := l.writePending(ctx); err != nil {
		return nil, err
	}
	l.logger.Info("pending submissions resolved",
		zap.Int("count", len(resolved)),
		zap.Bool("published", published),
	)
	return resolved, nil
}

func (l *Ledger) writePending(ctx context.Context) error {
	data, err := encode(l.Pending())
	if err != nil {
		return fmt.Errorf("%w: encode pending marker: %w", feed.ErrFatal, err)
	}
	if err := l.store.Put(ctx, l.pendingObject(), data); err != nil {
		return fmt.Errorf("%w: write pending marker: %w", feed.ErrFatal, err)
	}
	return nil
}

func (l *Ledger) pendingObject() string {
	return l.cfg.Object + pendingSuffix
}

func (l *Ledger) read(ctx context.Context, name string) ([]string, error) {
	data, err := l.store.Get(ctx, name)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return decode(data)
}

// encode writes ids as a single CSV record. An empty set encodes to no bytes.
func encode(ids []string) ([]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ids); err != nil {
		return nil, fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush record: %w", err)
	}
	return buf.Bytes(), nil
}

// decode reads every field of every record, dropping blanks.
func decode(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var ids []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse ledger: %w", err)
		}
		for _, field := range record {
			if id := strings.TrimSpace(field); id != "" {
				ids = append(ids, id)
			}
		}
	}
}
