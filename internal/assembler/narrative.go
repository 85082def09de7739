package assembler

import (
	"strings"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

func narrativeBlock(n *feed.Narratives) string {
	if n == nil {
		return ""
	}
	sections := []struct {
		header string
		text   *string
	}{
		{"NTSB Preliminary Narrative", n.Preliminary},
		{"NTSB Final Narrative", n.Final},
		{"NTSB Probable Cause Narrative", n.ProbableCause},
		{"FAA Incident Narrative", n.Incident},
	}

	var b strings.Builder
	for _, s := range sections {
		if s.text == nil {
			continue
		}
		b.WriteString("# " + s.header + "\n\n" + *s.text + "\n\n")
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString("---\n\n")
	return b.String()
}
