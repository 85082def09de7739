package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/progress"
	"github.com/JakeFAU/ntsb-publisher/internal/storage/memory"
	"github.com/JakeFAU/ntsb-publisher/internal/store"
)

// TestStoreSinkPersistsRun records a run start and its successful completion.
func TestStoreSinkPersistsRun(t *testing.T) {
	t.Parallel()

	repo := memory.NewRunStore()
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Unix(1700000000, 0).UTC()
	result := feed.Result{Succeeded: 3, Failed: 1, Skipped: 9}

	batch := []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now, Extracts: []string{"avall"}, DryRun: true},
		{RunID: runID, Stage: progress.StageRecord, TS: now, Extract: "avall", Outcome: progress.OutcomeSucceeded},
		{RunID: runID, Stage: progress.StageRunDone, TS: now.Add(time.Minute), Result: result},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	run, err := repo.GetRun(context.Background(), runUUID)
	require.NoError(t, err)
	require.Equal(t, store.RunSuccess, run.Status)
	require.True(t, run.DryRun)
	require.Equal(t, []string{"avall"}, run.Extracts)
	require.Equal(t, result, run.Result)
	require.NotNil(t, run.FinishedAt)
	require.Nil(t, run.ErrorMessage)
}

// TestStoreSinkRecordsErrorNote keeps the failure reason of an aborted run.
func TestStoreSinkRecordsErrorNote(t *testing.T) {
	t.Parallel()

	repo := memory.NewRunStore()
	sink := NewStoreSink(repo, nil)
	runUUID := uuid.New()
	runID := progress.UUIDToBytes(runUUID)
	now := time.Now()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, Stage: progress.StageRunStart, TS: now},
		{RunID: runID, Stage: progress.StageRunError, TS: now, Note: "ledger unwritable"},
	}))

	run, err := repo.GetRun(context.Background(), runUUID)
	require.NoError(t, err)
	require.Equal(t, store.RunError, run.Status)
	require.NotNil(t, run.ErrorMessage)
	require.Equal(t, "ledger unwritable", *run.ErrorMessage)
}

// TestStoreSinkHandlesErrors surfaces repository failures back to the caller.
func TestStoreSinkHandlesErrors(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(memory.NewRunStore(), nil)
	err := sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(uuid.New()), Stage: progress.StageRunDone, TS: time.Now()},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, store.ErrNotFound))
}
