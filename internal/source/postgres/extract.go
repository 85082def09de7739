// Package postgres implements the source connector over an NTSB extract
// loaded into Postgres, one schema per extract.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

var validSchemaName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for extracts.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Opener opens extracts as schemas of one Postgres database.
type Opener struct {
	cfg Config
}

// NewOpener validates cfg and returns an Opener.
func NewOpener(cfg Config) (*Opener, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("source.dsn is required")
	}
	return &Opener{cfg: cfg}, nil
}

// Open connects to the database with search_path set to the extract schema.
// Connection failures wrap feed.ErrFatal.
func (o *Opener) Open(ctx context.Context, extract string) (feed.Extract, error) {
	if !validSchemaName.MatchString(extract) {
		return nil, fmt.Errorf("invalid extract name %q", extract)
	}
	pool, err := o.connect(ctx, extract)
	if err != nil {
		return nil, fmt.Errorf("%w: connect extract %s: %w", feed.ErrFatal, extract, err)
	}
	return &Extract{pool: pool, name: extract}, nil
}

// Missing returns the extracts that have no schema in the database, in the
// order given.
func (o *Opener) Missing(ctx context.Context, extracts []string) ([]string, error) {
	pool, err := o.connect(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("connect source: %w", err)
	}
	defer pool.Close()
	return missingSchemas(ctx, pool, extracts)
}

func (o *Opener) connect(ctx context.Context, searchPath string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(o.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse source dsn: %w", err)
	}
	if o.cfg.MaxConns > 0 {
		poolCfg.MaxConns = o.cfg.MaxConns
	}
	if o.cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = o.cfg.MaxConnLifetime
	}
	if searchPath != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = searchPath
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

const schemasQuery = `
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name = ANY($1)`

func missingSchemas(ctx context.Context, q querier, extracts []string) ([]string, error) {
	if len(extracts) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, schemasQuery, extracts)
	if err != nil {
		return nil, fmt.Errorf("list extract schemas: %w", err)
	}
	defer rows.Close()

	present := make(map[string]struct{}, len(extracts))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list extract schemas: %w", err)
	}

	var missing []string
	for _, name := range extracts {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Extract streams candidates and answers sub-queries for one extract.
type Extract struct {
	pool querier
	name string
}

// NewExtractWithPool constructs an Extract from an existing pool (primarily for testing).
func NewExtractWithPool(pool querier, name string) (*Extract, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Extract{pool: pool, name: name}, nil
}

// Name returns the extract (schema) name.
func (e *Extract) Name() string {
	return e.name
}

// Close releases the underlying pool resources.
func (e *Extract) Close() {
	if e == nil || e.pool == nil {
		return
	}
	e.pool.Close()
}

const candidateFilter = `
FROM events
WHERE lchg_date >= $1
	AND ev_id IS NOT NULL
	AND btrim(ev_id) NOT IN ('', 'NONE', 'None')`

// Stream counts the candidates changed on or after epoch, then returns a
// single-pass sequence over them in the order the database returns them.
// Errors yielded by the sequence wrap feed.ErrFatal when the cursor itself
// failed; a bad row yields a plain error and the sequence continues.
func (e *Extract) Stream(ctx context.Context, epoch time.Time) (int, iter.Seq2[feed.Candidate, error], error) {
	var total int64
	if err := e.pool.QueryRow(ctx, "SELECT count(*)"+candidateFilter, epoch).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("%w: count candidates in %s: %w", feed.ErrFatal, e.name, err)
	}

	seq := func(yield func(feed.Candidate, error) bool) {
		rows, err := e.pool.Query(ctx, "SELECT ev_id, ntsb_no, lchg_date"+candidateFilter, epoch)
		if err != nil {
			yield(feed.Candidate{}, fmt.Errorf("%w: query candidates in %s: %w", feed.ErrFatal, e.name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id, ntsbNo pgtype.Text
				changed    pgtype.Timestamp
			)
			if err := rows.Scan(&id, &ntsbNo, &changed); err != nil {
				if !yield(feed.Candidate{}, fmt.Errorf("scan candidate: %w", err)) {
					return
				}
				continue
			}
			eventID := normalizeText(id)
			if eventID == nil {
				continue
			}
			candidate := feed.Candidate{
				EventID:    *eventID,
				NTSBNumber: normalizeText(ntsbNo),
			}
			if changed.Valid {
				candidate.LastChanged = changed.Time
			}
			if !yield(candidate, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(feed.Candidate{}, fmt.Errorf("%w: read candidates in %s: %w", feed.ErrFatal, e.name, err))
		}
	}
	return int(total), seq, nil
}

// queryRow runs a single-row sub-query. It reports found=false when the
// event has no row.
func (e *Extract) queryRow(ctx context.Context, what, sql, eventID string, dest ...any) (bool, error) {
	err := e.pool.QueryRow(ctx, sql, eventID).Scan(dest...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, queryError(what, eventID, err)
	}
}

// queryError wraps sub-query failures, escalating lost connections and
// cancellation so they abort the run.
func queryError(what, eventID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || isConnectionError(err) {
		return fmt.Errorf("%w: query %s for %s: %w", feed.ErrFatal, what, eventID, err)
	}
	return fmt.Errorf("query %s for %s: %w", what, eventID, err)
}
