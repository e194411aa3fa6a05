// Package session implements authentication (C7): hash-cache-verify
// bearer tokens against an identity provider, cache the resulting
// identity with a capped TTL, and rate-limit per email.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

// LocalCap is the maximum TTL a cached session is ever given,
// regardless of what the identity provider's token expiry says.
const LocalCap = 1 * time.Hour

// HashToken returns the cache key for a bearer token — sessions are
// never stored or logged under the raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionStore caches verified identities keyed by token hash.
type SessionStore interface {
	Get(ctx context.Context, tokenHash string) (*core.Session, error)
	Put(ctx context.Context, s *core.Session) error
	Delete(ctx context.Context, tokenHash string) error
	// Sweep evicts expired entries; called periodically by a background
	// cleanup task.
	Sweep(ctx context.Context, now time.Time) (evicted int, err error)
}

// IdentityVerifier confirms a bearer token against an external
// identity provider and returns the verified identity plus how long
// it is valid for.
type IdentityVerifier interface {
	Verify(ctx context.Context, bearerToken string) (userID, email string, expiresAt time.Time, err error)
}

// AuthError is returned by Authenticate on any failure path —
// verification failure, exhausted rate limit, or a malformed token.
type AuthError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *AuthError) Error() string { return "session: auth error: " + e.Reason }
