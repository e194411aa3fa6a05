package buffer

import (
	"time"

	"github.com/sony/gobreaker"
)

// Breakers holds one circuit breaker per dependency the worker loop
// calls into. Each trips independently after N consecutive failures
// within window W and admits a single probe after the open timeout.
type Breakers struct {
	Store    *gobreaker.CircuitBreaker
	Embedder *gobreaker.CircuitBreaker
	LLM      *gobreaker.CircuitBreaker
	Adapter  *gobreaker.CircuitBreaker
}

const (
	breakerFailureThreshold = 5
	breakerWindow           = 30 * time.Second
	breakerOpenTimeout      = 30 * time.Second
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: breakerWindow,
		Timeout:  breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
	})
}

// NewBreakers constructs the four dependency breakers this package
// wraps calls with.
func NewBreakers() *Breakers {
	return &Breakers{
		Store:    newBreaker("store"),
		Embedder: newBreaker("embedder"),
		LLM:      newBreaker("llm"),
		Adapter:  newBreaker("adapter"),
	}
}
