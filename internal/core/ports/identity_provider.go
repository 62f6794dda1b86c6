package ports

import (
	"context"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

// StateChangeFunc receives the current principal, or nil once signed out.
type StateChangeFunc func(principal *domain.ProviderPrincipal)

// OAuthGrant carries the result of the interactive part of an OAuth flow.
type OAuthGrant struct {
	Code         string
	CodeVerifier string
}

// IdentityProvider is the bridge to the external identity provider.
//
// State changes are delivered asynchronously and independently of the call
// that caused them, in the order they happened.
type IdentityProvider interface {
	OnStateChange(fn StateChangeFunc) (unsubscribe func())
	SignUp(ctx context.Context, email, password string) (*domain.ProviderPrincipal, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.ProviderPrincipal, error)
	SignInWithOAuth(ctx context.Context, grant OAuthGrant) (*domain.ProviderPrincipal, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	UpdateDisplayProfile(ctx context.Context, profile domain.DisplayProfile) error
}
