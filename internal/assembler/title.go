package assembler

import (
	"strings"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

const titleDateLayout = "January 02 2006"

// buildTitle renders "[injuries] [date] Make Model, City/ ST Country",
// omitting every component whose data is missing.
func buildTitle(s *feed.EventSummary) string {
	if s == nil {
		return ""
	}

	var head []string
	if s.TotalInjuries != nil {
		tally := injuryTally{
			Fatal:   value(s.Totals.Fatal) + value(s.Ground.Fatal),
			Serious: value(s.Totals.Serious) + value(s.Ground.Serious),
			Minor:   value(s.Totals.Minor) + value(s.Ground.Minor),
			None:    value(s.Totals.None),
		}
		if parts := tally.parts(); len(parts) > 0 {
			head = append(head, "["+strings.Join(parts, ", ")+"]")
		}
	}
	if s.Date != nil {
		head = append(head, "["+s.Date.Format(titleDateLayout)+"]")
	}
	head = appendPresent(head, s.Make, s.Model)

	var location []string
	if s.City != nil {
		location = append(location, *s.City+"/")
	}
	location = appendPresent(location, s.State, s.Country)

	title := strings.Join(head, " ")
	if len(head) > 0 && len(location) > 0 {
		title += ", "
	}
	title += strings.Join(location, " ")
	return sanitizeTitle(title)
}

// sanitizeTitle keeps printable ASCII only.
func sanitizeTitle(title string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return -1
		}
		return r
	}, title))
}

func appendPresent(dst []string, values ...*string) []string {
	for _, v := range values {
		if v != nil {
			dst = append(dst, *v)
		}
	}
	return dst
}

func value(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
