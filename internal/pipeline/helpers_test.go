package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/clock/system"
	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/ledger"
	"github.com/JakeFAU/ntsb-publisher/internal/progress"
	"github.com/JakeFAU/ntsb-publisher/internal/storage"
	"github.com/JakeFAU/ntsb-publisher/internal/storage/memory"
)

var testNow = time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)

type fakeAssembler struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
}

func (a *fakeAssembler) Assemble(_ context.Context, c feed.Candidate) (feed.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, c.EventID)
	if err := a.errs[c.EventID]; err != nil {
		return feed.Document{}, err
	}
	return feed.Document{
		EventID:    c.EventID,
		NTSBNumber: c.NTSBNumber,
		Title:      "[" + c.EventID + "]",
		Body:       "body of " + c.EventID,
	}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *recordingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

func (e *recordingEmitter) records() []progress.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []progress.Event
	for _, evt := range e.events {
		if evt.Stage == progress.StageRecord {
			out = append(out, evt)
		}
	}
	return out
}

type streamItem struct {
	candidate feed.Candidate
	err       error
}

func candidates(ids ...string) []streamItem {
	items := make([]streamItem, 0, len(ids))
	for _, id := range ids {
		no := "ERA" + id
		items = append(items, streamItem{candidate: feed.Candidate{EventID: id, NTSBNumber: &no}})
	}
	return items
}

func seqOf(items []streamItem) iter.Seq2[feed.Candidate, error] {
	return func(yield func(feed.Candidate, error) bool) {
		for _, item := range items {
			if !yield(item.candidate, item.err) {
				return
			}
		}
	}
}

// flakyStore fails writes to one object.
type flakyStore struct {
	*memory.BlobStore
	failObject string
}

func (s *flakyStore) Put(ctx context.Context, name string, data []byte) error {
	if name == s.failObject {
		return fmt.Errorf("write %s: %w", name, errors.New("disk full"))
	}
	return s.BlobStore.Put(ctx, name, data)
}

func loadLedger(t *testing.T, store storage.BlobStore, writeAhead bool) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(store, ledger.Config{WriteAhead: writeAhead}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Load(context.Background()))
	return l
}

func newTestLoop(asm feed.Assembler, l feed.Ledger, pub feed.Publisher, em progress.Emitter, cfg Config) *Loop {
	return NewLoop(asm, l, pub, em, system.Fixed(testNow), nil, cfg, zap.NewNop())
}
