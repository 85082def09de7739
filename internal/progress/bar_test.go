package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		completed int
		total     int
		want      string
	}{
		{"empty", 0, 5, "\r     0% |" + strings.Repeat(" ", 50) + "| 0/5"},
		{"partial", 2, 5, "\r    40% |" + strings.Repeat("█", 20) + strings.Repeat(" ", 30) + "| 2/5"},
		{"complete", 5, 5, "\r   100% |" + strings.Repeat("█", 50) + "| 5/5"},
		{"zero total", 0, 0, "\r   100% |" + strings.Repeat("█", 50) + "| 0/0"},
		{"rounds percentage", 2, 3, "\r    67% |" + strings.Repeat("█", 33) + strings.Repeat(" ", 17) + "| 2/3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Render(tc.completed, tc.total))
		})
	}
}

func TestBarMonotonicAndErrorSuffix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bar := NewBar(&buf, 3)
	bar.Start()
	bar.Update(1, 0)
	bar.Update(2, 1)
	bar.Update(1, 1)
	bar.Update(3, 1)
	bar.Finish()

	assert.Equal(t, 3, bar.Completed())
	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\r")[1:]
	require.Len(t, frames, 5)
	assert.True(t, strings.HasSuffix(frames[1], "| 1/3"))
	assert.True(t, strings.HasSuffix(frames[2], "| 2/3 - ERR 1"))
	assert.True(t, strings.HasSuffix(frames[3], "| 2/3 - ERR 1"), "completed must not move backwards")
	assert.True(t, strings.HasSuffix(frames[4], "| 3/3 - ERR 1"))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestNewBarNilWriter(t *testing.T) {
	t.Parallel()

	bar := NewBar(nil, 1)
	bar.Start()
	bar.Update(1, 0)
	bar.Finish()
	assert.Equal(t, 1, bar.Completed())
}
