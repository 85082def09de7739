package feed

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Source streams candidate records changed on or after an epoch date. The
// total is the raw candidate count, known before any document is built.
type Source interface {
	Stream(ctx context.Context, epoch time.Time) (int, iter.Seq2[Candidate, error], error)
}

// RecordQueries loads the sub-records of one event. A missing row is reported
// as a nil result and a nil error.
type RecordQueries interface {
	EventSummary(ctx context.Context, eventID string) (*EventSummary, error)
	Narratives(ctx context.Context, eventID string) (*Narratives, error)
	Aircraft(ctx context.Context, eventID string) (*AircraftInfo, error)
	Weather(ctx context.Context, eventID string) (*WeatherInfo, error)
	Impact(ctx context.Context, eventID string) (*ImpactInfo, error)
	Injuries(ctx context.Context, eventID string) ([]InjuryRow, error)
}

// Extract is an opened source extract: it streams candidates and answers the
// assembler's sub-queries over the same connection.
type Extract interface {
	Source
	RecordQueries
	Name() string
	Close()
}

// Opener opens a named extract.
type Opener interface {
	Open(ctx context.Context, extract string) (Extract, error)
}

// Assembler builds the document for a candidate.
type Assembler interface {
	Assemble(ctx context.Context, candidate Candidate) (Document, error)
}

// Ledger is the persisted set of already-published identities.
type Ledger interface {
	Contains(eventID string) bool
	Append(eventID string)
	Persist(ctx context.Context) error
}

// PendingTracker is implemented by ledgers that keep a write-ahead marker of
// the submission currently in flight.
type PendingTracker interface {
	IsPending(eventID string) bool
	MarkPending(ctx context.Context, eventID string) error
	ClearPending(ctx context.Context) error
}

// Publisher is the external publishing platform.
type Publisher interface {
	Submit(ctx context.Context, doc Document) (string, error)
	Description(ctx context.Context) (string, error)
	SetDescription(ctx context.Context, text string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}
