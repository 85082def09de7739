// Package assembler builds the markdown document published for one accident
// event from the event's sub-records.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// ErrTablesTooLong is returned when the tables and signature alone exceed the
// body cap, so no narrative truncation can make the document fit.
var ErrTablesTooLong = errors.New("tables exceed body length cap")

const ellipsis = "..."

// Config controls Assembler behavior.
type Config struct {
	// MaxBodyLen caps the body length in characters. Zero means feed.DefaultMaxBodyLen.
	MaxBodyLen int
}

// Assembler joins the sub-queries of an event into a Document.
type Assembler struct {
	queries feed.RecordQueries
	cfg     Config
	logger  *zap.Logger
}

// New constructs an Assembler.
func New(queries feed.RecordQueries, cfg Config, logger *zap.Logger) *Assembler {
	if cfg.MaxBodyLen <= 0 {
		cfg.MaxBodyLen = feed.DefaultMaxBodyLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{queries: queries, cfg: cfg, logger: logger}
}

// Assemble builds the title and body for candidate. Missing sub-records
// contribute nothing; a failed sub-query drops its block with a warning.
// Errors wrapping feed.ErrFatal are returned as-is.
func (a *Assembler) Assemble(ctx context.Context, candidate feed.Candidate) (feed.Document, error) {
	id := candidate.EventID
	doc := feed.Document{EventID: id, NTSBNumber: candidate.NTSBNumber}

	summary, err := a.queries.EventSummary(ctx, id)
	if err = a.omit("title", id, err); err != nil {
		return doc, err
	}
	doc.Title = buildTitle(summary)

	narratives, err := a.queries.Narratives(ctx, id)
	if err = a.omit("narratives", id, err); err != nil {
		return doc, err
	}

	tables, err := a.buildTables(ctx, id)
	if err != nil {
		return doc, err
	}

	body, err := fitBody(
		normalizeEncoding(narrativeBlock(narratives)),
		normalizeEncoding(tables+signature(candidate.NTSBNumber)),
		a.cfg.MaxBodyLen,
	)
	if err != nil {
		return doc, fmt.Errorf("assemble %s: %w", id, err)
	}
	doc.Body = body
	return doc, nil
}

func (a *Assembler) buildTables(ctx context.Context, id string) (string, error) {
	var out string

	aircraft, err := a.queries.Aircraft(ctx, id)
	if err = a.omit("aircraft table", id, err); err != nil {
		return "", err
	}
	out += aircraftTable(aircraft)

	weather, err := a.queries.Weather(ctx, id)
	if err = a.omit("meteorological table", id, err); err != nil {
		return "", err
	}
	out += weatherTable(weather)

	impact, err := a.queries.Impact(ctx, id)
	if err = a.omit("wreckage table", id, err); err != nil {
		return "", err
	}
	if impact == nil {
		return out, nil
	}
	rows, err := a.queries.Injuries(ctx, id)
	if err != nil {
		return out, a.omit("wreckage table", id, err)
	}
	out += impactTable(impact, aggregateInjuries(rows))
	return out, nil
}

// omit logs a recoverable sub-query failure and swallows it. Fatal errors
// are returned to the caller.
func (a *Assembler) omit(block, eventID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, feed.ErrFatal) {
		return err
	}
	a.logger.Warn("omitting block after sub-query failure",
		zap.String("block", block),
		zap.String("event_id", eventID),
		zap.Error(err),
	)
	return nil
}

// fitBody joins narrative and tables, shortening the narrative tail so the
// result holds at most maxLen characters. The tables are never shortened.
func fitBody(narrative, tables string, maxLen int) (string, error) {
	tablesLen := utf8.RuneCountInString(tables)
	if tablesLen > maxLen {
		return "", fmt.Errorf("%w: %d > %d", ErrTablesTooLong, tablesLen, maxLen)
	}
	if utf8.RuneCountInString(narrative)+tablesLen <= maxLen {
		return narrative + tables, nil
	}
	keep := maxLen - tablesLen - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		return tables, nil
	}
	return truncateRunes(narrative, keep) + ellipsis + tables, nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
