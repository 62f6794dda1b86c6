package ports

import (
	"context"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Name            string      `json:"name" validate:"required"`
	Email           string      `json:"email" validate:"required,email"`
	Phone           string      `json:"phone"`
	Password        string      `json:"password" validate:"required,min=6,max=72"`
	Country         string      `json:"country"`
	Address         string      `json:"address"`
	Role            domain.Role `json:"role" validate:"omitempty,oneof=user business"`
	BusinessName    string      `json:"business_name" validate:"required_if=Role business"`
	BusinessAddress string      `json:"business_address" validate:"required_if=Role business"`
}

// Result is what every session operation returns. Failures are classified,
// never thrown.
type Result struct {
	Success  bool             `json:"success"`
	Code     domain.ErrorCode `json:"code,omitempty"`
	Message  string           `json:"error,omitempty"`
	Identity *domain.Identity `json:"identity,omitempty"`
}

// Snapshot is the published session state.
type Snapshot struct {
	Identity *domain.Identity `json:"identity"`
	Loading  bool             `json:"loading"`
}

// SessionService is the surface consumers (UI, HTTP layer) use.
type SessionService interface {
	Snapshot() Snapshot
	Subscribe(fn func(Snapshot)) (unsubscribe func())

	SignUp(ctx context.Context, in SignUpInput) Result
	SignInWithPassword(ctx context.Context, email, password string) Result
	SignInWithOAuth(ctx context.Context, grant OAuthGrant) Result
	SignOut(ctx context.Context) Result
	SendPasswordReset(ctx context.Context, email string) Result
	PatchProfile(ctx context.Context, patch domain.ProfilePatch) Result
	Refresh(ctx context.Context) Result
}
