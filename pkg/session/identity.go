package session

import (
	"context"
	"time"
)

// StaticVerifier is a test/offline IdentityVerifier that accepts a
// fixed map of bearer tokens to identities — never wired in production,
// only used to exercise Authenticate without a real OIDC provider.
type StaticVerifier struct {
	Tokens map[string]struct {
		UserID string
		Email  string
	}
	TTL time.Duration
}

func (v *StaticVerifier) Verify(ctx context.Context, bearerToken string) (string, string, time.Time, error) {
	entry, ok := v.Tokens[bearerToken]
	if !ok {
		return "", "", time.Time{}, &AuthError{Reason: "unknown token"}
	}
	ttl := v.TTL
	if ttl == 0 {
		ttl = LocalCap
	}
	return entry.UserID, entry.Email, time.Now().Add(ttl), nil
}
