// Package embedder wraps the external embedding model behind a simple
// text -> float32[D] contract, adding a per-call batching bound, token
// accounting, and cost recording. Failed calls are not retried here.
package embedder

import (
	"context"
	"errors"
)

// Provider is the narrow capability set a concrete embedding backend must
// implement. Any implementation satisfying it is substitutable; tests
// inject a deterministic fake.
type Provider interface {
	// EmbedBatch embeds 1..B texts in one call. len(vectors) == len(texts)
	// always holds on success. Dimension is constant per model.
	EmbedBatch(ctx context.Context, texts []string) (vectors [][]float32, tokens int, err error)

	// Dimension returns the fixed vector dimension produced by this
	// provider.
	Dimension() int

	// ModelName identifies the model for cost-table lookups and usage
	// records.
	ModelName() string

	Close() error
}

// Sentinel errors translated into core.Kind at the Gateway boundary.
var (
	ErrUnavailable   = errors.New("embedder unavailable")
	ErrQuotaExceeded = errors.New("embedder quota exceeded")
)

// UnavailableError carries whether the failure is retryable, per the
// Embedder contract's EmbedderUnavailable(retryable) shape.
type UnavailableError struct {
	Retryable bool
	Err       error
}

func (e *UnavailableError) Error() string { return "embedder unavailable: " + e.Err.Error() }
func (e *UnavailableError) Unwrap() error { return e.Err }

// QuotaExceededError carries retry-after, per EmbedderQuotaExceeded(retryable-after).
type QuotaExceededError struct {
	RetryAfterSeconds int
	Err               error
}

func (e *QuotaExceededError) Error() string { return "embedder quota exceeded: " + e.Err.Error() }
func (e *QuotaExceededError) Unwrap() error { return e.Err }
