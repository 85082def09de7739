package assembler

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

type injuryTally struct {
	Fatal   int64
	Serious int64
	Minor   int64
	None    int64
}

func (t injuryTally) parts() []string {
	var parts []string
	add := func(n int64, label string) {
		if n > 0 {
			parts = append(parts, strconv.FormatInt(n, 10)+" "+label)
		}
	}
	add(t.Fatal, "Fatal")
	add(t.Serious, "Serious")
	add(t.Minor, "Minor")
	add(t.None, "None")
	return parts
}

// String renders e.g. "2 Fatal, 1 Minor", or "None" when every count is zero.
func (t injuryTally) String() string {
	parts := t.parts()
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, ", ")
}

func (t *injuryTally) add(level feed.Severity, n int64) {
	switch level {
	case feed.SeverityFatal:
		t.Fatal += n
	case feed.SeveritySerious:
		t.Serious += n
	case feed.SeverityMinor:
		t.Minor += n
	case feed.SeverityNone:
		t.None += n
	}
}

func tallyOf(c feed.InjuryCounts) injuryTally {
	return injuryTally{
		Fatal:   value(c.Fatal),
		Serious: value(c.Serious),
		Minor:   value(c.Minor),
		None:    value(c.None),
	}
}

type personInjuries struct {
	Crew      injuryTally
	Passenger injuryTally
}

// aggregateInjuries sums injury rows per person category and severity.
// Unknown categories and severity codes are ignored.
func aggregateInjuries(rows []feed.InjuryRow) personInjuries {
	var out personInjuries
	for _, row := range rows {
		switch row.Category {
		case feed.PersonCrew:
			out.Crew.add(row.Level, row.Count)
		case feed.PersonPassenger:
			out.Passenger.add(row.Level, row.Count)
		}
	}
	return out
}
