package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botdash/botdash/internal/chatbot"
)

// ErrRevoked is returned for credentials on the revocation list.
var ErrRevoked = errors.New("credential has been revoked")

// RevocationChecker reports whether a raw credential was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Claims are the identity fields read from a verified credential.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Expiry  int64  `json:"exp"`
}

// ExpiresAt returns the exp claim as a time. Zero when absent.
func (c *Claims) ExpiresAt() time.Time {
	if c.Expiry == 0 {
		return time.Time{}
	}
	return time.Unix(c.Expiry, 0)
}

// Authenticator resolves bearer credentials to callers by trying each
// verifier in order.
type Authenticator struct {
	verifiers []Verifier
	revoked   RevocationChecker
}

// NewAuthenticator returns an Authenticator. revoked may be nil.
func NewAuthenticator(revoked RevocationChecker, verifiers ...Verifier) *Authenticator {
	return &Authenticator{verifiers: verifiers, revoked: revoked}
}

// Configured reports whether at least one verifier is available.
func (a *Authenticator) Configured() bool {
	return a != nil && len(a.verifiers) > 0
}

// Inspect verifies raw and returns its claims.
func (a *Authenticator) Inspect(ctx context.Context, raw string) (*Claims, error) {
	if !a.Configured() {
		return nil, errors.New("no identity provider configured")
	}
	if a.revoked != nil {
		revoked, err := a.revoked.IsRevoked(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("revocation check: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	var errs []error
	for _, v := range a.verifiers {
		tok, err := v.Verify(ctx, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var claims Claims
		if err := tok.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to parse claims: %w", err)
		}
		if claims.Subject == "" {
			return nil, errors.New("credential has no subject")
		}
		return &claims, nil
	}
	return nil, errors.Join(errs...)
}

// Authenticate implements the caller lookup used by the provisioning service
// and the HTTP middleware.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*chatbot.Caller, error) {
	claims, err := a.Inspect(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &chatbot.Caller{ID: claims.Subject, Email: claims.Email}, nil
}
