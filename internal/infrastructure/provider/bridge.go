// Package provider implements the identity provider the session engine talks
// to: password accounts, OpenID Connect sign-in, persisted session tokens and
// asynchronous state-change delivery.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
	"github.com/marketbridge/identity-session/internal/infrastructure/queue"
	"github.com/marketbridge/identity-session/internal/pkg/validation"
)

// TokenStore persists the signed session token.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string, ttl time.Duration) error
	Clear(ctx context.Context) error
}

type ResetThrottle interface {
	Allow(ctx context.Context, email string) (bool, error)
}

type ResetTokenStore interface {
	Save(ctx context.Context, token, email string) error
}

// ResetNotifier delivers a password reset token to its owner.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, email, token string) error
}

// OAuthExchanger completes an OAuth authorization code grant.
type OAuthExchanger interface {
	Exchange(ctx context.Context, grant ports.OAuthGrant) (*ExternalIdentity, error)
}

// Deps are the collaborators of a Bridge. OAuth may be nil, which disables
// OAuth sign-in.
type Deps struct {
	Credentials ports.CredentialRepository
	Signer      *TokenSigner
	Tokens      TokenStore
	Throttle    ResetThrottle
	ResetTokens ResetTokenStore
	Notifier    ResetNotifier
	OAuth       OAuthExchanger
	Events      *queue.Dispatcher
}

// Bridge is the identity provider. It holds at most one signed-in principal.
type Bridge struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time

	mu      sync.Mutex
	current *domain.Credential
}

var _ ports.IdentityProvider = (*Bridge)(nil)

func NewBridge(deps Deps, log zerolog.Logger) *Bridge {
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Log: log}
	}
	return &Bridge{
		deps: deps,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Restore reloads the persisted session and publishes the initial state.
// Exactly one state is published whatever happens, so listeners always learn
// whether someone is signed in.
func (b *Bridge) Restore(ctx context.Context) error {
	cred, err := b.restore(ctx)

	b.mu.Lock()
	b.current = cred
	b.mu.Unlock()

	if cred == nil {
		b.deps.Events.Publish(nil)
	} else {
		b.deps.Events.Publish(cred.Principal())
		b.log.Info().Str("principal_id", cred.PrincipalID).Msg("provider session restored")
	}
	return err
}

func (b *Bridge) restore(ctx context.Context) (*domain.Credential, error) {
	tok, err := b.deps.Tokens.Load(ctx)
	if err != nil {
		return nil, err
	}
	if tok == "" {
		return nil, nil
	}

	principalID, err := b.deps.Signer.Parse(tok)
	if err != nil {
		b.log.Info().Err(err).Msg("discarding invalid provider session token")
		return nil, b.deps.Tokens.Clear(ctx)
	}

	cred, err := b.deps.Credentials.FindByID(ctx, principalID)
	switch {
	case errors.Is(err, domain.ErrNoSuchAccount):
		return nil, b.deps.Tokens.Clear(ctx)
	case err != nil:
		return nil, fmt.Errorf("restore session: %w", err)
	case cred.Disabled:
		b.log.Warn().Str("principal_id", principalID).Msg("persisted session belongs to a disabled account")
		return nil, b.deps.Tokens.Clear(ctx)
	}
	return cred, nil
}

func (b *Bridge) OnStateChange(fn ports.StateChangeFunc) func() {
	return b.deps.Events.Subscribe(fn)
}

func (b *Bridge) SignUp(ctx context.Context, email, password string) (*domain.ProviderPrincipal, error) {
	email = domain.NormalizeEmail(email)
	if !validation.Email(email) {
		return nil, domain.ErrInvalidEmail
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	now := b.now()
	cred := &domain.Credential{
		PrincipalID:  uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := b.deps.Credentials.Create(ctx, cred); err != nil {
		return nil, err
	}
	return b.signIn(ctx, cred), nil
}

func (b *Bridge) SignInWithPassword(ctx context.Context, email, password string) (*domain.ProviderPrincipal, error) {
	cred, err := b.deps.Credentials.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if cred.Disabled {
		return nil, domain.ErrAccountDisabled
	}
	if err := verifyPassword(cred.PasswordHash, password); err != nil {
		return nil, err
	}
	return b.signIn(ctx, cred), nil
}

// SignInWithOAuth links the external identity to an account by email,
// creating a password-less account on first sign-in.
func (b *Bridge) SignInWithOAuth(ctx context.Context, grant ports.OAuthGrant) (*domain.ProviderPrincipal, error) {
	if b.deps.OAuth == nil {
		return nil, domain.ErrOAuthDisabled
	}
	ext, err := b.deps.OAuth.Exchange(ctx, grant)
	if err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(ext.Email)

	cred, err := b.deps.Credentials.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNoSuchAccount) {
		cred, err = b.createExternal(ctx, email, ext)
	}
	if err != nil {
		return nil, err
	}
	if cred.Disabled {
		return nil, domain.ErrAccountDisabled
	}

	if (cred.DisplayName == "" && ext.Name != "") || (cred.PhotoURL == "" && ext.Picture != "") {
		profile := domain.DisplayProfile{}
		if cred.DisplayName == "" {
			profile.DisplayName = ext.Name
		}
		if cred.PhotoURL == "" {
			profile.PhotoURL = ext.Picture
		}
		if err := b.deps.Credentials.UpdateProfile(ctx, cred.PrincipalID, profile); err != nil {
			b.log.Warn().Err(err).Str("principal_id", cred.PrincipalID).Msg("failed to copy oauth profile")
		} else {
			applyProfile(cred, profile)
		}
	}

	return b.signIn(ctx, cred), nil
}

func (b *Bridge) createExternal(ctx context.Context, email string, ext *ExternalIdentity) (*domain.Credential, error) {
	now := b.now()
	cred := &domain.Credential{
		PrincipalID: uuid.NewString(),
		Email:       email,
		DisplayName: ext.Name,
		PhotoURL:    ext.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := b.deps.Credentials.Create(ctx, cred)
	if errors.Is(err, domain.ErrEmailInUse) {
		// Lost a race with a concurrent first sign-in.
		return b.deps.Credentials.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	b.log.Info().Str("principal_id", cred.PrincipalID).Str("subject", ext.Subject).Msg("account created from oauth identity")
	return cred, nil
}

// SignOut always publishes the signed-out state; a failure to drop the
// persisted token is still reported.
func (b *Bridge) SignOut(ctx context.Context) error {
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()

	err := b.deps.Tokens.Clear(ctx)
	b.deps.Events.Publish(nil)
	if err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}

func (b *Bridge) SendPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if !validation.Email(email) {
		return domain.ErrInvalidEmail
	}
	if _, err := b.deps.Credentials.FindByEmail(ctx, email); err != nil {
		return err
	}

	ok, err := b.deps.Throttle.Allow(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrRateLimited
	}

	token := uuid.NewString()
	if err := b.deps.ResetTokens.Save(ctx, token, email); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return b.deps.Notifier.NotifyReset(ctx, email, token)
}

// UpdateDisplayProfile changes the signed-in principal's provider profile.
// It does not emit a state change.
func (b *Bridge) UpdateDisplayProfile(ctx context.Context, profile domain.DisplayProfile) error {
	b.mu.Lock()
	cur := b.current
	b.mu.Unlock()
	if cur == nil {
		return domain.ErrNoSession
	}

	if err := b.deps.Credentials.UpdateProfile(ctx, cur.PrincipalID, profile); err != nil {
		return err
	}

	b.mu.Lock()
	if b.current != nil && b.current.PrincipalID == cur.PrincipalID {
		applyProfile(b.current, profile)
	}
	b.mu.Unlock()
	return nil
}

// signIn makes cred the current principal, persists a session token and
// publishes the state change.
func (b *Bridge) signIn(ctx context.Context, cred *domain.Credential) *domain.ProviderPrincipal {
	c := *cred
	b.mu.Lock()
	b.current = &c
	b.mu.Unlock()

	if tok, err := b.deps.Signer.Sign(c.Principal()); err != nil {
		b.log.Warn().Err(err).Msg("session token not issued, session will not survive a restart")
	} else if err := b.deps.Tokens.Save(ctx, tok, b.deps.Signer.TTL()); err != nil {
		b.log.Warn().Err(err).Msg("session token not persisted, session will not survive a restart")
	}

	p := c.Principal()
	b.deps.Events.Publish(p)
	return p
}

func applyProfile(cred *domain.Credential, profile domain.DisplayProfile) {
	if profile.DisplayName != "" {
		cred.DisplayName = profile.DisplayName
	}
	if profile.PhotoURL != "" {
		cred.PhotoURL = profile.PhotoURL
	}
}

// LogNotifier logs reset tokens instead of mailing them.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) NotifyReset(_ context.Context, email, token string) error {
	n.Log.Info().Str("email", email).Str("reset_token", token).Msg("password reset requested")
	return nil
}
