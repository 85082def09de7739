package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/progress"
)

// RunSnapshot is the live view of the most recent run.
type RunSnapshot struct {
	RunID      uuid.UUID   `json:"run_id"`
	State      string      `json:"state"`
	DryRun     bool        `json:"dry_run"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Extract    string      `json:"extract,omitempty"`
	Completed  int         `json:"completed"`
	Total      int         `json:"total"`
	Result     feed.Result `json:"result"`
	Error      string      `json:"error,omitempty"`
}

// Snapshot states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateSuccess = "success"
	StateError   = "error"
)

// SnapshotSink keeps RunSnapshot current for the status endpoint.
type SnapshotSink struct {
	mu   sync.RWMutex
	snap RunSnapshot
	// base accumulates finished extracts so Result reflects the whole run.
	base feed.Result
}

// NewSnapshotSink returns an idle SnapshotSink.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{snap: RunSnapshot{State: StateIdle}}
}

// Consume folds each event into the snapshot.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *SnapshotSink) apply(evt progress.Event) {
	if evt.Stage == progress.StageRunStart {
		s.snap = RunSnapshot{
			RunID:     evt.RunUUID(),
			State:     StateRunning,
			DryRun:    evt.DryRun,
			StartedAt: evt.TS,
		}
		s.base = feed.Result{}
		return
	}
	if evt.RunUUID() != s.snap.RunID {
		return
	}
	switch evt.Stage {
	case progress.StageExtractStart:
		s.snap.Extract = evt.Extract
		s.snap.Completed = 0
		s.snap.Total = evt.Total
	case progress.StageRecord:
		s.snap.Completed = evt.Completed
		if evt.Total > 0 {
			s.snap.Total = evt.Total
		}
		s.snap.Result = s.base
		s.snap.Result.Add(evt.Result)
	case progress.StageExtractDone:
		s.base.Add(evt.Result)
		s.snap.Result = s.base
	case progress.StageRunDone, progress.StageRunError:
		ts := evt.TS
		s.snap.FinishedAt = &ts
		s.snap.Result = evt.Result
		s.snap.State = StateSuccess
		if evt.Stage == progress.StageRunError {
			s.snap.State = StateError
			s.snap.Error = evt.Note
		}
	}
}

// Snapshot returns a copy of the current view.
func (s *SnapshotSink) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	if out.FinishedAt != nil {
		ts := *out.FinishedAt
		out.FinishedAt = &ts
	}
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
