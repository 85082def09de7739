package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageExtractStart Stage = "EXTRACT_START"
	StageRecord       Stage = "RECORD"
	StageExtractDone  Stage = "EXTRACT_DONE"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
)

// Outcome is the fate of one candidate record.
type Outcome string

// Record outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Event captures a single milestone of a publish run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Extract names the extract being processed, when applicable.
	Extract string
	// Extracts lists every extract of the run on RUN_START.
	Extracts []string
	// DryRun marks runs that never submit.
	DryRun bool
	// EventID identifies the record on RECORD events.
	EventID string
	// Outcome is set on RECORD events.
	Outcome Outcome
	// Completed and Total position the record within its extract.
	Completed int
	Total     int
	// Bytes is the submitted body size.
	Bytes int64
	// Dur is the submission latency for records and wall time for runs.
	Dur time.Duration
	// Result carries the tallies on EXTRACT_DONE, RUN_DONE, and RUN_ERROR.
	Result feed.Result
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageExtractStart, StageExtractDone:
		if e.Extract == "" {
			return fmt.Errorf("%s requires extract", e.Stage)
		}
	case StageRecord:
		switch e.Outcome {
		case OutcomeSucceeded, OutcomeFailed, OutcomeSkipped:
		default:
			return fmt.Errorf("unknown outcome %q", e.Outcome)
		}
		if e.Completed < 0 {
			return errors.New("completed must be >= 0")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
