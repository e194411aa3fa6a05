package session

import (
	"sync"
	"time"
)

// bucket is a single email's token bucket: Tokens refills at Rate
// tokens/sec up to Burst, consumed one per login attempt.
type bucket struct {
	tokens   float64
	lastFill time.Time
}

// RateLimiter is an in-process token bucket keyed by email. See
// DESIGN.md for why this is hand-rolled instead of built on an
// external limiter library.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
}

// NewRateLimiter builds a limiter allowing burst immediate attempts,
// refilling at rate attempts/sec thereafter.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   float64(burst),
	}
}

// DefaultRateLimiter allows 5 login attempts, refilling one every 12s
// (5/minute sustained) — generous for legitimate retries, tight enough
// to blunt credential-stuffing.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(5.0/60.0, 5)
}

// Allow reports whether email may attempt a login now, and if not, how
// long until the next token refills.
func (rl *RateLimiter) Allow(email string, now time.Time) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[email]
	if !ok {
		b = &bucket{tokens: rl.burst, lastFill: now}
		rl.buckets[email] = b
	}

	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastFill = now

	if b.tokens < 1 {
		if rl.rate <= 0 {
			return false, time.Duration(1<<63 - 1)
		}
		deficit := 1 - b.tokens
		return false, time.Duration(deficit/rl.rate*1000) * time.Millisecond
	}

	b.tokens--
	return true, 0
}

// Reset clears an email's bucket back to full, used after a
// successful authentication.
func (rl *RateLimiter) Reset(email string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, email)
}
