package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter(1, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("conn-a"), "request %d", i)
	}
	assert.False(t, l.Allow("conn-a"))

	// Other clients have their own bucket.
	assert.True(t, l.Allow("conn-b"))
}

func TestLimiterForget(t *testing.T) {
	l := NewLimiter(1, 1)
	assert.True(t, l.Allow("conn-a"))
	assert.False(t, l.Allow("conn-a"))

	l.Forget("conn-a")
	assert.True(t, l.Allow("conn-a"))
	assert.Equal(t, 1, l.Burst())
}

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("client"))
	}
}

func TestLimiterSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(60, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("old"))
	now = now.Add(10 * time.Minute)
	assert.True(t, l.Allow("fresh"))
	assert.Equal(t, 2, l.Len())

	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.Equal(t, 1, l.Len())

	// The swept client starts over with a full bucket.
	assert.True(t, l.Allow("old"))
	assert.False(t, l.Allow("fresh"))
}

func TestLimiterCleanupStops(t *testing.T) {
	l := NewLimiter(60, 1)
	assert.True(t, l.Allow("client"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Cleanup(ctx, 5*time.Millisecond, 0) }()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
}
