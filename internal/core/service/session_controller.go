package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
	"github.com/marketbridge/identity-session/internal/pkg/metrics"
)

const defaultObserverTimeout = 10 * time.Second

// Options tunes a SessionController. Zero values fall back to defaults.
type Options struct {
	Trial    TrialPolicy
	Redirect RedirectPolicy
	// Navigator is optional; without it no redirect is ever requested.
	Navigator ports.Navigator
	// ObserverTimeout bounds the record store calls made from a provider
	// state-change callback.
	ObserverTimeout time.Duration
}

// SessionController owns the current identity. It subscribes once to the
// identity provider, resolves roles, writes through to the session cache and
// exposes the mutating session operations.
//
// Lock order: pubMu, then mu, then subMu. Subscribers are called with pubMu
// held and must not invoke session operations synchronously.
type SessionController struct {
	provider ports.IdentityProvider
	store    ports.RecordStore
	cache    ports.SessionCache
	resolver *RoleResolver
	log      zerolog.Logger
	opts     Options
	now      func() time.Time

	// pubMu serializes publishes so cache writes and notifications keep the
	// order in which state changed.
	pubMu sync.Mutex

	// mu guards the published state together with the sign-up guard. A
	// resolution started under one epoch is discarded if the epoch moved on
	// before it could publish.
	mu       sync.RWMutex
	identity *domain.Identity
	loading  bool
	guard    signupGuard
	epoch    uint64

	subMu   sync.Mutex
	subs    map[int]func(ports.Snapshot)
	nextSub int

	baseCtx     context.Context
	unsubscribe func()
}

var _ ports.SessionService = (*SessionController)(nil)

func NewSessionController(
	provider ports.IdentityProvider,
	store ports.RecordStore,
	cache ports.SessionCache,
	log zerolog.Logger,
	opts Options,
) *SessionController {
	if opts.Trial.Plan == "" || opts.Trial.Duration <= 0 {
		opts.Trial = DefaultTrialPolicy
	}
	if opts.ObserverTimeout <= 0 {
		opts.ObserverTimeout = defaultObserverTimeout
	}
	return &SessionController{
		provider: provider,
		store:    store,
		cache:    cache,
		resolver: NewRoleResolver(store, log),
		log:      log,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		loading:  true,
		subs:     make(map[int]func(ports.Snapshot)),
		baseCtx:  context.Background(),
	}
}

// Start hydrates from the session cache and subscribes to provider state
// changes. Call Close to release the subscription.
func (c *SessionController) Start(ctx context.Context) {
	c.baseCtx = context.WithoutCancel(ctx)
	c.hydrate(ctx)
	c.unsubscribe = c.provider.OnStateChange(c.handleStateChange)
}

// Close releases the provider subscription.
func (c *SessionController) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// GuardState reports the current race guard state.
func (c *SessionController) GuardState() GuardState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guard.state()
}

// Snapshot returns a copy of the published state.
func (c *SessionController) Snapshot() ports.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ports.Snapshot{Identity: c.identity.Clone(), Loading: c.loading}
}

// Subscribe registers fn for every published change.
func (c *SessionController) Subscribe(fn func(ports.Snapshot)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// hydrate publishes the cached identity, if any, before the provider answers.
func (c *SessionController) hydrate(ctx context.Context) {
	id, err := c.cache.Read(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("session cache read failed, waiting for provider")
		return
	}
	if id == nil {
		return
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if !c.loading {
		// The provider already answered; the cache is stale by definition.
		c.mu.Unlock()
		return
	}
	c.identity = id
	c.loading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.Debug().Str("principal_id", id.PrincipalID).Msg("session hydrated from cache")
	c.notify(snap)
}

// handleStateChange is the provider observer callback.
func (c *SessionController) handleStateChange(p *domain.ProviderPrincipal) {
	c.mu.RLock()
	state := c.guard.state()
	epoch := c.epoch
	c.mu.RUnlock()

	if state == GuardSignupInFlight {
		metrics.ObserverEventsTotal.WithLabelValues("skipped_signup").Inc()
		c.log.Debug().Msg("state change ignored while sign-up is in flight")
		return
	}

	ctx, cancel := context.WithTimeout(c.baseCtx, c.opts.ObserverTimeout)
	defer cancel()

	if p == nil {
		if c.publishObserved(ctx, epoch, nil) {
			metrics.ObserverEventsTotal.WithLabelValues("signed_out").Inc()
		}
		return
	}

	res := c.resolver.Resolve(ctx, domain.NormalizeEmail(p.Email), p)
	if !c.publishObserved(ctx, epoch, res.Identity) {
		return
	}
	metrics.ObserverEventsTotal.WithLabelValues("resolved").Inc()
	c.log.Info().
		Str("principal_id", p.ID).
		Str("role", string(res.Identity.Role)).
		Str("source", res.Source).
		Bool("degraded", res.Degraded).
		Msg("identity resolved")

	c.maybeRedirect()
}

// publishObserved publishes the result of an observer callback unless a
// sign-up is in flight or a direct publish happened since epoch was read.
func (c *SessionController) publishObserved(ctx context.Context, epoch uint64, next *domain.Identity) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if c.guard.state() == GuardSignupInFlight || c.epoch != epoch {
		c.mu.Unlock()
		metrics.ObserverEventsTotal.WithLabelValues("stale").Inc()
		return false
	}
	if next != nil && c.identity != nil && c.identity.PrincipalID == next.PrincipalID {
		merged := c.identity.Clone()
		merged.MergeFrom(next)
		next = merged
	}
	c.identity = next
	c.loading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.writeCache(ctx, snap.Identity)
	c.notify(snap)
	return true
}

// publishDirect replaces the identity unconditionally and invalidates any
// observer resolution still running.
func (c *SessionController) publishDirect(ctx context.Context, next *domain.Identity) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	c.epoch++
	c.identity = next.Clone()
	c.loading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.writeCache(ctx, snap.Identity)
	c.notify(snap)
}

// update applies fn to a copy of the current identity and publishes the result.
func (c *SessionController) update(ctx context.Context, fn func(cur *domain.Identity) (*domain.Identity, error)) (*domain.Identity, error) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return nil, domain.ErrNoSession
	}
	next, err := fn(c.identity.Clone())
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.epoch++
	c.identity = next
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.writeCache(ctx, snap.Identity)
	c.notify(snap)
	return snap.Identity, nil
}

// beginSignup moves the guard to SignupInFlight. The returned release must
// run on every exit path.
func (c *SessionController) beginSignup() (release func()) {
	c.mu.Lock()
	c.guard.begin()
	c.epoch++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.guard.end()
			c.mu.Unlock()
		})
	}
}

func (c *SessionController) snapshotLocked() ports.Snapshot {
	if c.identity != nil {
		metrics.SignedIn.Set(1)
	} else {
		metrics.SignedIn.Set(0)
	}
	return ports.Snapshot{Identity: c.identity.Clone(), Loading: c.loading}
}

func (c *SessionController) writeCache(ctx context.Context, id *domain.Identity) {
	if err := c.cache.Write(ctx, id); err != nil {
		c.log.Warn().Err(err).Bool("clear", id == nil).Msg("session cache write failed")
	}
}

func (c *SessionController) notify(snap ports.Snapshot) {
	c.subMu.Lock()
	fns := make([]func(ports.Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ports.Snapshot{Identity: snap.Identity.Clone(), Loading: snap.Loading})
	}
}

func (c *SessionController) maybeRedirect() {
	nav := c.opts.Navigator
	if nav == nil {
		return
	}
	if target, ok := c.opts.Redirect.target(nav.CurrentRoute()); ok {
		c.log.Debug().Str("to", target).Msg("requesting navigation away from auth-only route")
		nav.RequestNavigation(target)
	}
}
