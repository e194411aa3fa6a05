package session

import (
	"context"
	"fmt"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

// Authenticator wires a SessionStore, an IdentityVerifier and a
// per-email rate limiter into the three-step login path: hash the
// token, check the cache, and only fall through to the identity
// provider on a cache miss.
type Authenticator struct {
	Store    SessionStore
	Verifier IdentityVerifier
	Limiter  *RateLimiter
}

func NewAuthenticator(store SessionStore, verifier IdentityVerifier, limiter *RateLimiter) *Authenticator {
	if limiter == nil {
		limiter = DefaultRateLimiter()
	}
	return &Authenticator{Store: store, Verifier: verifier, Limiter: limiter}
}

// Authenticate resolves a bearer token to a (userID, email) pair,
// preferring a cached session over a provider round-trip.
func (a *Authenticator) Authenticate(ctx context.Context, bearerToken string) (userID, email string, err error) {
	tokenHash := HashToken(bearerToken)
	now := time.Now()

	cached, err := a.Store.Get(ctx, tokenHash)
	if err == nil && !cached.Expired(now) {
		return cached.UserID, cached.Email, nil
	}

	// We don't yet know the email for a fresh token, so the rate
	// limiter can only gate by what the provider returns — check again
	// once we have it, below, before trusting the verified identity.
	verifiedUserID, verifiedEmail, expiresAt, verr := a.Verifier.Verify(ctx, bearerToken)
	if verr != nil {
		return "", "", verr
	}

	if allowed, retryAfter := a.Limiter.Allow(verifiedEmail, now); !allowed {
		return "", "", &AuthError{Reason: fmt.Sprintf("rate limited for %s", verifiedEmail), RetryAfter: retryAfter}
	}

	cap := now.Add(LocalCap)
	if expiresAt.After(cap) || expiresAt.IsZero() {
		expiresAt = cap
	}

	session := &core.Session{
		TokenHash: tokenHash,
		UserID:    verifiedUserID,
		Email:     verifiedEmail,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	if err := a.Store.Put(ctx, session); err != nil {
		return "", "", fmt.Errorf("session: cache write: %w", err)
	}

	a.Limiter.Reset(verifiedEmail)
	return verifiedUserID, verifiedEmail, nil
}
