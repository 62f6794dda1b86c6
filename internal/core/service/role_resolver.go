package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
	"github.com/marketbridge/identity-session/internal/pkg/metrics"
)

// Resolution sources.
const (
	SourceAdmins    = domain.CollectionAdmins
	SourceUsers     = domain.CollectionUsers
	SourcePrincipal = "principal"
)

// Resolution is the outcome of RoleResolver.Resolve.
type Resolution struct {
	Identity *domain.Identity
	// Source names where the profile came from.
	Source string
	// Degraded is true when a lookup failed and was treated as absent.
	Degraded bool
}

// RoleResolver turns a provider principal into a canonical identity by
// consulting the admins and users collections, in that order.
type RoleResolver struct {
	store ports.RecordStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewRoleResolver(store ports.RecordStore, log zerolog.Logger) *RoleResolver {
	return &RoleResolver{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Resolve never fails: store errors are logged and the lookup is treated as
// absent, falling back to an identity built from the principal alone.
func (r *RoleResolver) Resolve(ctx context.Context, normalizedEmail string, p *domain.ProviderPrincipal) Resolution {
	start := time.Now()
	defer func() { metrics.ResolutionDuration.Observe(time.Since(start).Seconds()) }()

	key := domain.NormalizeEmail(normalizedEmail)
	id := r.fromPrincipal(p)
	res := Resolution{Identity: id, Source: SourcePrincipal}

	// 1. Administrators win regardless of anything stored in users.
	ok, failed := r.applyAdmin(ctx, key, id)
	res.Degraded = failed
	if ok {
		res.Source = SourceAdmins
		metrics.ResolutionsTotal.WithLabelValues(res.Source).Inc()
		return res
	}

	// 2. Regular users.
	rec, err := r.lookup(ctx, domain.CollectionUsers, key)
	switch {
	case err != nil:
		res.Degraded = true
	case rec != nil:
		rec.ApplyTo(id)
		id.Role = userRole(rec.Role)
		if rec.Role == domain.RoleAdmin {
			r.log.Warn().Str("email", key).Msg("users record claims admin role without admins record, using default role")
		}
		res.Source = SourceUsers
	}

	// 3. Principal only: degraded but valid.
	metrics.ResolutionsTotal.WithLabelValues(res.Source).Inc()
	return res
}

// ApplyAdmin elevates id when an admins record exists for key. It reports
// whether the identity was elevated. Lookup failures leave id untouched.
func (r *RoleResolver) ApplyAdmin(ctx context.Context, key string, id *domain.Identity) bool {
	ok, _ := r.applyAdmin(ctx, domain.NormalizeEmail(key), id)
	return ok
}

func (r *RoleResolver) applyAdmin(ctx context.Context, key string, id *domain.Identity) (elevated, failed bool) {
	rec, err := r.lookup(ctx, domain.CollectionAdmins, key)
	if err != nil {
		return false, true
	}
	if rec == nil {
		return false, false
	}
	rec.ApplyTo(id)
	id.Role = domain.RoleAdmin
	id.IsAdmin = true
	id.Permissions = rec.PermissionsOrEmpty()
	return true, false
}

// lookup returns (nil, nil) when the record is absent.
func (r *RoleResolver) lookup(ctx context.Context, collection, key string) (*domain.ProfileRecord, error) {
	rec, err := r.store.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, nil
		}
		metrics.ResolutionStoreErrorsTotal.WithLabelValues(collection).Inc()
		r.log.Warn().Err(err).Str("collection", collection).Str("email", key).Msg("record lookup failed, treating as absent")
		return nil, err
	}
	return rec, nil
}

// fromPrincipal builds the minimal identity. Principal id and email always
// come from the provider, never from a stored record.
func (r *RoleResolver) fromPrincipal(p *domain.ProviderPrincipal) *domain.Identity {
	return &domain.Identity{
		PrincipalID:     p.ID,
		Email:           p.Email,
		NormalizedEmail: domain.NormalizeEmail(p.Email),
		DisplayName:     p.DisplayName,
		PhotoURL:        p.PhotoURL,
		Role:            domain.DefaultRole,
		CreatedAt:       r.now(),
	}
}

// userRole maps a role stored in users to the effective role. Administrator
// rights only ever come from the admins collection.
func userRole(stored domain.Role) domain.Role {
	if !stored.Valid() || stored == domain.RoleAdmin {
		return domain.DefaultRole
	}
	return stored
}
