package service

import (
	"context"
	"errors"
	"strings"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
	"github.com/marketbridge/identity-session/internal/pkg/metrics"
	"github.com/marketbridge/identity-session/internal/pkg/validation"
)

const (
	opSignUp         = "sign_up"
	opSignInPassword = "sign_in_password"
	opSignInOAuth    = "sign_in_oauth"
	opSignOut        = "sign_out"
	opPasswordReset  = "password_reset"
	opPatchProfile   = "patch_profile"
	opRefresh        = "refresh"
)

// SignUp creates the principal, writes the profile record and publishes the
// identity built from exactly what was written. Provider state changes are
// ignored for the whole transaction.
func (c *SessionController) SignUp(ctx context.Context, in ports.SignUpInput) ports.Result {
	if err := validateSignUp(in); err != nil {
		return c.fail(opSignUp, err)
	}
	key := domain.NormalizeEmail(in.Email)

	release := c.beginSignup()
	defer release()

	principal, err := c.provider.SignUp(ctx, key, in.Password)
	if err != nil {
		return c.fail(opSignUp, err)
	}

	rec := c.newProfileRecord(in, key)
	if err := c.store.Set(ctx, domain.CollectionUsers, key, rec, domain.SetOptions{}); err != nil {
		c.abandon(ctx, opSignUp)
		return c.fail(opSignUp, storeErr(domain.CollectionUsers, "set", err))
	}

	if err := c.provider.UpdateDisplayProfile(ctx, domain.DisplayProfile{DisplayName: rec.Name}); err != nil {
		c.abandon(ctx, opSignUp)
		return c.fail(opSignUp, err)
	}

	id := identityFromRecord(principal, key, rec)
	c.resolver.ApplyAdmin(ctx, key, id)
	c.publishDirect(ctx, id)

	c.log.Info().Str("principal_id", principal.ID).Str("role", string(id.Role)).Msg("sign-up completed")
	return c.succeed(opSignUp, id)
}

// SignInWithPassword only verifies credentials. Role resolution happens in
// the state-change observer once the provider reports the principal.
func (c *SessionController) SignInWithPassword(ctx context.Context, email, password string) ports.Result {
	key := domain.NormalizeEmail(email)
	if key == "" || password == "" {
		return c.fail(opSignInPassword, &domain.ValidationError{Message: "email and password are required"})
	}
	if _, err := c.provider.SignInWithPassword(ctx, key, password); err != nil {
		return c.fail(opSignInPassword, err)
	}
	return c.succeed(opSignInPassword, nil)
}

// SignInWithOAuth completes the provider OAuth flow, creates a default
// profile record on first sign-in or fills in newly available provider fields
// on later ones, and publishes the identity directly.
func (c *SessionController) SignInWithOAuth(ctx context.Context, grant ports.OAuthGrant) ports.Result {
	release := c.beginSignup()
	defer release()

	principal, err := c.provider.SignInWithOAuth(ctx, grant)
	if err != nil {
		return c.fail(opSignInOAuth, err)
	}
	key := domain.NormalizeEmail(principal.Email)
	if key == "" {
		c.abandon(ctx, opSignInOAuth)
		return c.fail(opSignInOAuth, errors.New("oauth principal has no email"))
	}

	rec, err := c.store.Get(ctx, domain.CollectionUsers, key)
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		rec = c.defaultRecord(principal, key)
		if err := c.store.Set(ctx, domain.CollectionUsers, key, rec, domain.SetOptions{}); err != nil {
			c.abandon(ctx, opSignInOAuth)
			return c.fail(opSignInOAuth, storeErr(domain.CollectionUsers, "set", err))
		}
		c.log.Info().Str("principal_id", principal.ID).Msg("default profile created for first oauth sign-in")
	case err != nil:
		c.abandon(ctx, opSignInOAuth)
		return c.fail(opSignInOAuth, storeErr(domain.CollectionUsers, "get", err))
	default:
		if upd := c.missingProviderFields(rec, principal); upd != nil {
			if err := c.store.Set(ctx, domain.CollectionUsers, key, upd, domain.SetOptions{Merge: true}); err != nil {
				c.log.Warn().Err(err).Str("email", key).Msg("failed to merge provider fields into profile")
			}
			mergeRecord(rec, upd)
		}
	}

	id := identityFromRecord(principal, key, rec)
	c.resolver.ApplyAdmin(ctx, key, id)
	c.publishDirect(ctx, id)
	return c.succeed(opSignInOAuth, id)
}

// SignOut signs out remotely on a best-effort basis and always clears the
// local identity and cache.
func (c *SessionController) SignOut(ctx context.Context) ports.Result {
	if err := c.provider.SignOut(ctx); err != nil {
		c.log.Warn().Err(err).Msg("provider sign-out failed, clearing local session anyway")
	}
	c.publishDirect(ctx, nil)
	return c.succeed(opSignOut, nil)
}

func (c *SessionController) SendPasswordReset(ctx context.Context, email string) ports.Result {
	key := domain.NormalizeEmail(email)
	if !validation.Email(key) {
		return c.fail(opPasswordReset, domain.NewAuthError(domain.CodeInvalidEmail, domain.ErrInvalidEmail))
	}
	if err := c.provider.SendPasswordReset(ctx, key); err != nil {
		return c.fail(opPasswordReset, err)
	}
	return c.succeed(opPasswordReset, nil)
}

// PatchProfile merges patch into the in-memory identity and the session
// cache only. It is not durable: callers write the record store themselves
// and then call Refresh.
func (c *SessionController) PatchProfile(ctx context.Context, patch domain.ProfilePatch) ports.Result {
	if patch.Empty() {
		return c.fail(opPatchProfile, &domain.ValidationError{Message: "nothing to update"})
	}
	id, err := c.update(ctx, func(cur *domain.Identity) (*domain.Identity, error) {
		patch.Apply(cur)
		return cur, nil
	})
	if err != nil {
		return c.fail(opPatchProfile, err)
	}
	return c.succeed(opPatchProfile, id)
}

// Refresh re-resolves the current identity after the record store changed
// out of band.
func (c *SessionController) Refresh(ctx context.Context) ports.Result {
	cur := c.Snapshot().Identity
	if cur == nil {
		return c.fail(opRefresh, domain.ErrNoSession)
	}

	res := c.resolver.Resolve(ctx, cur.NormalizedEmail, &domain.ProviderPrincipal{
		ID:          cur.PrincipalID,
		Email:       cur.Email,
		DisplayName: cur.DisplayName,
		PhotoURL:    cur.PhotoURL,
	})

	id, err := c.update(ctx, func(latest *domain.Identity) (*domain.Identity, error) {
		if latest.PrincipalID != cur.PrincipalID {
			return nil, domain.ErrNoSession
		}
		next := res.Identity
		if res.Degraded {
			// Keep the role we already know rather than demote on a failed lookup.
			// A revoked admin keeps the role until a lookup succeeds.
			next.Role = latest.Role
			next.IsAdmin = latest.IsAdmin
			next.Permissions = latest.Permissions
		}
		latest.MergeFrom(next)
		return latest, nil
	})
	if err != nil {
		return c.fail(opRefresh, err)
	}
	return c.succeed(opRefresh, id)
}

// abandon undoes the provider side of a failed sign-up so the provider and
// the local identity agree on "signed out".
func (c *SessionController) abandon(ctx context.Context, op string) {
	if err := c.provider.SignOut(ctx); err != nil {
		c.log.Warn().Err(err).Str("operation", op).Msg("sign-out after failed transaction failed")
	}
	c.publishDirect(ctx, nil)
}

func (c *SessionController) succeed(op string, id *domain.Identity) ports.Result {
	metrics.OperationsTotal.WithLabelValues(op, "ok").Inc()
	return ports.Result{Success: true, Identity: id.Clone()}
}

func (c *SessionController) fail(op string, err error) ports.Result {
	ae := domain.Classify(err)
	metrics.OperationsTotal.WithLabelValues(op, string(ae.Code)).Inc()

	ev := c.log.Warn()
	if ae.Code == domain.CodeStore || ae.Code == domain.CodeProvider {
		ev = c.log.Error()
	}
	ev.Err(err).Str("operation", op).Str("code", string(ae.Code)).Msg("session operation failed")

	return ports.Result{Success: false, Code: ae.Code, Message: ae.Message}
}

// maxPasswordBytes is the bcrypt input limit. The validate tag counts runes,
// so multi-byte passwords are checked here as well.
const maxPasswordBytes = 72

func validateSignUp(in ports.SignUpInput) error {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	if len(in.Password) > maxPasswordBytes {
		return &domain.ValidationError{Message: "password must be at most 72 bytes"}
	}
	return nil
}

func (c *SessionController) newProfileRecord(in ports.SignUpInput, key string) *domain.ProfileRecord {
	now := c.now()
	role := in.Role
	if role == "" {
		role = domain.DefaultRole
	}
	return &domain.ProfileRecord{
		Name:            strings.TrimSpace(in.Name),
		Email:           key,
		Phone:           in.Phone,
		Address:         in.Address,
		Country:         in.Country,
		BusinessName:    in.BusinessName,
		BusinessAddress: in.BusinessAddress,
		Role:            role,
		Subscription:    c.opts.Trial.Subscription(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (c *SessionController) defaultRecord(p *domain.ProviderPrincipal, key string) *domain.ProfileRecord {
	now := c.now()
	return &domain.ProfileRecord{
		Name:         p.DisplayName,
		Email:        key,
		PhotoURL:     p.PhotoURL,
		Role:         domain.DefaultRole,
		Subscription: c.opts.Trial.Subscription(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// missingProviderFields returns the provider fields the record lacks, or nil.
// Fields the user already filled in are never overwritten.
func (c *SessionController) missingProviderFields(rec *domain.ProfileRecord, p *domain.ProviderPrincipal) *domain.ProfileRecord {
	upd := &domain.ProfileRecord{}
	changed := false
	if rec.Name == "" && p.DisplayName != "" {
		upd.Name = p.DisplayName
		changed = true
	}
	if rec.PhotoURL == "" && p.PhotoURL != "" {
		upd.PhotoURL = p.PhotoURL
		changed = true
	}
	if !changed {
		return nil
	}
	upd.UpdatedAt = c.now()
	return upd
}

func mergeRecord(dst, upd *domain.ProfileRecord) {
	if upd.Name != "" {
		dst.Name = upd.Name
	}
	if upd.PhotoURL != "" {
		dst.PhotoURL = upd.PhotoURL
	}
	if !upd.UpdatedAt.IsZero() {
		dst.UpdatedAt = upd.UpdatedAt
	}
}

// identityFromRecord builds the identity from a record this process just
// wrote. Principal id and email come from the provider.
func identityFromRecord(p *domain.ProviderPrincipal, key string, rec *domain.ProfileRecord) *domain.Identity {
	email := p.Email
	if email == "" {
		email = key
	}
	id := &domain.Identity{
		PrincipalID:     p.ID,
		Email:           email,
		NormalizedEmail: domain.NormalizeEmail(email),
		DisplayName:     p.DisplayName,
		PhotoURL:        p.PhotoURL,
		Role:            userRole(rec.Role),
		CreatedAt:       rec.CreatedAt,
	}
	rec.ApplyTo(id)
	return id
}

func storeErr(collection, op string, err error) error {
	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StoreError{Collection: collection, Op: op, Err: err}
}
