package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/session"
)

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	rl := session.NewRateLimiter(1.0, 3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("a@example.com", now)
		require.True(t, allowed, "attempt %d within burst should be allowed", i)
	}

	allowed, retryAfter := rl.Allow("a@example.com", now)
	require.False(t, allowed)
	require.Greater(t, retryAfter, time.Duration(0))
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl := session.NewRateLimiter(1.0, 1)
	now := time.Now()

	allowed, _ := rl.Allow("a@example.com", now)
	require.True(t, allowed)

	allowed, _ = rl.Allow("a@example.com", now)
	require.False(t, allowed)

	later := now.Add(2 * time.Second)
	allowed, _ = rl.Allow("a@example.com", later)
	require.True(t, allowed, "two seconds later a 1 token/sec limiter should have refilled")
}

func TestRateLimiterResetClearsBucket(t *testing.T) {
	rl := session.NewRateLimiter(1.0, 1)
	now := time.Now()

	allowed, _ := rl.Allow("a@example.com", now)
	require.True(t, allowed)
	allowed, _ = rl.Allow("a@example.com", now)
	require.False(t, allowed)

	rl.Reset("a@example.com")
	allowed, _ = rl.Allow("a@example.com", now)
	require.True(t, allowed, "reset should restore a full bucket immediately")
}

func TestRateLimiterTracksEmailsIndependently(t *testing.T) {
	rl := session.NewRateLimiter(1.0, 1)
	now := time.Now()

	allowed, _ := rl.Allow("a@example.com", now)
	require.True(t, allowed)
	allowed, _ = rl.Allow("a@example.com", now)
	require.False(t, allowed)

	allowed, _ = rl.Allow("b@example.com", now)
	require.True(t, allowed, "a different email must have its own bucket")
}
