package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// oidcClaims are the JWT claims extracted from a verified ID token.
type oidcClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// OIDCVerifier is the default IdentityVerifier, validating bearer
// tokens as OIDC ID tokens against a discovered provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	oauthCfg oauth2.Config
}

// NewOIDCVerifier performs OIDC discovery against issuerURL, fetching
// the provider's public keys.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("session: discover OIDC provider %s: %w", issuerURL, err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		oauthCfg: oauth2.Config{ClientID: clientID, Endpoint: provider.Endpoint()},
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, bearerToken string) (string, string, time.Time, error) {
	token := strings.TrimPrefix(bearerToken, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", time.Time{}, &AuthError{Reason: "empty bearer token"}
	}

	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return "", "", time.Time{}, &AuthError{Reason: fmt.Sprintf("verifying token: %v", err)}
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return "", "", time.Time{}, &AuthError{Reason: fmt.Sprintf("extracting claims: %v", err)}
	}
	if claims.Subject == "" {
		return "", "", time.Time{}, &AuthError{Reason: "token missing sub claim"}
	}

	expiresAt := idToken.Expiry
	if cap := time.Now().Add(LocalCap); expiresAt.After(cap) {
		expiresAt = cap
	}

	return claims.Subject, claims.Email, expiresAt, nil
}
