package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/publisher/memory"
)

func TestSubmitDelaysAfterBurst(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	// 600 per minute is one token every 100ms.
	limited := New(pub, Config{PerMinute: 600, Burst: 1}, zap.NewNop())
	ctx := context.Background()

	_, err := limited.Submit(ctx, feed.Document{EventID: "1"})
	require.NoError(t, err)

	start := time.Now()
	_, err = limited.Submit(ctx, feed.Document{EventID: "2"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, pub.Documents(), 2)
}

func TestSubmitUnlimited(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	limited := New(pub, Config{}, nil)
	start := time.Now()
	for _, id := range []string{"1", "2", "3", "4"} {
		_, err := limited.Submit(context.Background(), feed.Document{EventID: id})
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Len(t, pub.Documents(), 4)
}

func TestSubmitCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	limited := New(pub, Config{PerMinute: 1, Burst: 1}, zap.NewNop())
	_, err := limited.Submit(context.Background(), feed.Document{EventID: "1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Submit(ctx, feed.Document{EventID: "2"})
	require.Error(t, err)
	assert.Len(t, pub.Documents(), 1)
}

func TestSubmitPropagatesFailure(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	boom := errors.New("server busy")
	pub.FailFor("1", boom)
	limited := New(pub, Config{}, zap.NewNop())

	_, err := limited.Submit(context.Background(), feed.Document{EventID: "1"})
	assert.ErrorIs(t, err, boom)
}

func TestDescriptionPassThrough(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	limited := New(pub, Config{PerMinute: 1}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, limited.SetDescription(ctx, "feed"))
	require.NoError(t, limited.SetDescription(ctx, "feed 05/03/2024"))
	desc, err := limited.Description(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feed 05/03/2024", desc)
}
