package ports

import (
	"context"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

// CredentialRepository persists the identity provider's accounts.
type CredentialRepository interface {
	// Create returns domain.ErrEmailInUse when the email is already registered.
	Create(ctx context.Context, cred *domain.Credential) error
	// FindByEmail and FindByID return domain.ErrNoSuchAccount when absent.
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	FindByID(ctx context.Context, principalID string) (*domain.Credential, error)
	UpdateProfile(ctx context.Context, principalID string, profile domain.DisplayProfile) error
}
