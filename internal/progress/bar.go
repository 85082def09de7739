package progress

import (
	"fmt"
	"io"
	"math"
	"strings"
)

const barWidth = 50

// Render formats the in-place progress line, e.g.
// "\r    40% |████████████████████                              | 2/5".
// A zero total renders as complete.
func Render(completed, total int) string {
	fraction := 1.0
	if total != 0 {
		fraction = float64(completed) / float64(total)
	}
	fraction = math.Max(0, math.Min(1, fraction))
	filled := int(barWidth * fraction)
	return fmt.Sprintf("\r   %3d%% |%s%s| %d/%d",
		int(math.Round(fraction*100)),
		strings.Repeat("█", filled),
		strings.Repeat(" ", barWidth-filled),
		completed,
		total,
	)
}

// Bar redraws Render output in place on a terminal writer.
type Bar struct {
	w         io.Writer
	total     int
	completed int
	errors    int
}

// NewBar returns a Bar for total records. A nil writer discards output.
func NewBar(w io.Writer, total int) *Bar {
	if w == nil {
		w = io.Discard
	}
	return &Bar{w: w, total: total}
}

// Start draws the empty bar.
func (b *Bar) Start() {
	b.draw()
}

// Update records completed and failure counts and redraws the bar.
// Completed never moves backwards.
func (b *Bar) Update(completed, failed int) {
	if completed > b.completed {
		b.completed = completed
	}
	b.errors = failed
	b.draw()
}

// Completed returns the highest completed count drawn so far.
func (b *Bar) Completed() int {
	return b.completed
}

// Finish ends the line.
func (b *Bar) Finish() {
	_, _ = io.WriteString(b.w, "\n")
}

func (b *Bar) draw() {
	line := Render(b.completed, b.total)
	if b.errors > 0 {
		line += fmt.Sprintf(" - ERR %d", b.errors)
	}
	_, _ = io.WriteString(b.w, line)
}
