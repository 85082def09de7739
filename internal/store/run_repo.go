// Package store declares interfaces for persisting publish run history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the publish_runs status column.
type RunStatus string

// Run statuses persisted in publish_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models the publish_runs table for API responses.
type Run struct {
	// ID is the primary key of publish_runs.
	ID uuid.UUID `json:"id"`
	// StartedAt captures when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// Status is running/success/error.
	Status RunStatus `json:"status"`
	// DryRun marks runs that never submitted.
	DryRun bool `json:"dry_run"`
	// Extracts lists the extract names processed by the run.
	Extracts []string `json:"extracts"`
	// Result holds the final tallies.
	Result feed.Result `json:"result"`
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string `json:"error_message,omitempty"`
}

// RunRepository persists publish run history.
type RunRepository interface {
	// StartRun inserts a running row.
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time, extracts []string, dryRun bool) error
	// CompleteRun marks the run finished with the final tallies and error.
	CompleteRun(
		ctx context.Context,
		runID uuid.UUID,
		finishedAt time.Time,
		status RunStatus,
		result feed.Result,
		errMsg *string,
	) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs filtered by optional status plus limit/offset,
	// newest first.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}
