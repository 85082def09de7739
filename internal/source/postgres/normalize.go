package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// The Access-to-Postgres export writes absent values as literal strings.
var nullSentinels = map[string]struct{}{
	"NONE": {},
	"None": {},
}

// normalizeText maps SQL NULL, sentinel strings, and blank values to nil.
func normalizeText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := strings.TrimSpace(t.String)
	if s == "" {
		return nil
	}
	if _, ok := nullSentinels[s]; ok {
		return nil
	}
	return &s
}

// normalizeCode maps SQL NULL and blank values to nil. Coded columns where
// NONE is a legitimate value go through here instead of normalizeText.
func normalizeCode(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := strings.TrimSpace(t.String)
	if s == "" {
		return nil
	}
	return &s
}

func normalizeInt(n pgtype.Int8) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func normalizeFloat(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func normalizeDate(d pgtype.Date) *time.Time {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return nil
	}
	v := d.Time
	return &v
}

func isConnectionError(err error) bool {
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr) || pgconn.Timeout(err)
}
