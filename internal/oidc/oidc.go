package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Token is a verified credential that can expose its claims.
// It is satisfied by *oidc.IDToken and by test fakes.
type Token interface {
	Claims(v interface{}) error
}

// Verifier checks the signature and validity window of a raw credential.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// ProviderVerifier wraps the OIDC provider and token verifier
type ProviderVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewProviderVerifier discovers the issuer and creates a verifier for clientID
func NewProviderVerifier(ctx context.Context, issuer, clientID string) (*ProviderVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &ProviderVerifier{provider: provider, verifier: verifier}, nil
}

func (v *ProviderVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
