package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"send2me-service/internal/client"
	"send2me-service/internal/docstore"
	"send2me-service/internal/model"
)

func newTestLimiter(t *testing.T) (*Limiter, *docstore.Store, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := docstore.New(client.NewRedisClientFromAddr(mr.Addr()), 4)
	l := NewLimiter(store)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, store, &now
}

func TestIncrementWithinWindow(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()

	const limit = 3
	window := 10 * time.Second

	for _, wantRemaining := range []int{2, 1, 0} {
		res, err := l.Increment(ctx, "target:uid:hash", window, limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, wantRemaining, res.Remaining)
	}
}

func TestIncrementDeniesAtLimitWithoutConsuming(t *testing.T) {
	l, store, _ := newTestLimiter(t)
	ctx := context.Background()

	window := 10 * time.Second
	for i := 0; i < 3; i++ {
		_, err := l.Increment(ctx, "k", window, 3)
		require.NoError(t, err)
	}

	res, err := l.Increment(ctx, "k", window, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	// the rejected attempt must not change the stored count
	var counter model.RateLimitCounter
	found, err := store.Get(ctx, "rate_limits:k", &counter)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, counter.Count)
}

func TestIncrementResetsAfterWindowExpiry(t *testing.T) {
	l, store, now := newTestLimiter(t)
	ctx := context.Background()

	window := 10 * time.Second
	for i := 0; i < 3; i++ {
		_, err := l.Increment(ctx, "k", window, 3)
		require.NoError(t, err)
	}

	// just past expiry: the window restarts rather than accumulating
	*now = now.Add(window + time.Millisecond)
	res, err := l.Increment(ctx, "k", window, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)

	var counter model.RateLimitCounter
	_, err = store.Get(ctx, "rate_limits:k", &counter)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.Count)
	assert.Equal(t, now.UnixMilli(), counter.WindowStartedAt)
}

func TestIncrementExactWindowBoundaryStillActive(t *testing.T) {
	l, _, now := newTestLimiter(t)
	ctx := context.Background()

	window := 10 * time.Second
	for i := 0; i < 3; i++ {
		_, err := l.Increment(ctx, "k", window, 3)
		require.NoError(t, err)
	}

	// elapsed == window is not "> window": still the same window
	*now = now.Add(window)
	res, err := l.Increment(ctx, "k", window, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestIndependentKeys(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()

	window := 10 * time.Second
	for i := 0; i < 3; i++ {
		_, err := l.Increment(ctx, TargetKey("uid-1", "hash-a"), window, 3)
		require.NoError(t, err)
	}

	res, err := l.Increment(ctx, TargetKey("uid-2", "hash-a"), window, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "counters are scoped per key")
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "target:uid-1:abc", TargetKey("uid-1", "abc"))
	assert.Equal(t, "global:abc", GlobalKey("abc"))
}
