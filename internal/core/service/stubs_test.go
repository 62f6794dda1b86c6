package service

import (
	"context"
	"sync"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub record store
// ---------------------------------------------------------------------------

type stubRecordStore struct {
	mu      sync.Mutex
	records map[string]map[string]*domain.ProfileRecord
	getErr  map[string]error // per collection
	setErr  error
	sets    int
	// onGet, if set, runs before every Get without the store lock held.
	onGet func(collection, key string)
}

func newStubRecordStore() *stubRecordStore {
	return &stubRecordStore{
		records: map[string]map[string]*domain.ProfileRecord{
			domain.CollectionAdmins: {},
			domain.CollectionUsers:  {},
		},
		getErr: map[string]error{},
	}
}

func (s *stubRecordStore) put(collection, key string, rec *domain.ProfileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[collection][key] = &clone
}

func (s *stubRecordStore) record(collection, key string) *domain.ProfileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[collection][key]
	if !ok {
		return nil
	}
	clone := *rec
	return &clone
}

func (s *stubRecordStore) Get(_ context.Context, collection, key string) (*domain.ProfileRecord, error) {
	if s.onGet != nil {
		s.onGet(collection, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.getErr[collection]; err != nil {
		return nil, err
	}
	rec, ok := s.records[collection][key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *stubRecordStore) Set(_ context.Context, collection, key string, rec *domain.ProfileRecord, opts domain.SetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	clone := *rec
	if existing, ok := s.records[collection][key]; ok && opts.Merge {
		merged := *existing
		if clone.Name != "" {
			merged.Name = clone.Name
		}
		if clone.PhotoURL != "" {
			merged.PhotoURL = clone.PhotoURL
		}
		if !clone.UpdatedAt.IsZero() {
			merged.UpdatedAt = clone.UpdatedAt
		}
		clone = merged
	}
	s.records[collection][key] = &clone
	return nil
}

// ---------------------------------------------------------------------------
// Stub identity provider
// ---------------------------------------------------------------------------

type stubProvider struct {
	mu       sync.Mutex
	listener ports.StateChangeFunc

	principal *domain.ProviderPrincipal

	signUpErr  error
	signInErr  error
	oauthErr   error
	signOutErr error
	resetErr   error
	profileErr error

	signUps      int
	signOuts     int
	resets       []string
	displayNames []string
	// fireOnSignUp makes SignUp emit a state change before returning, the way
	// a real provider signs the new account in.
	fireOnSignUp bool
}

func (p *stubProvider) OnStateChange(fn ports.StateChangeFunc) func() {
	p.mu.Lock()
	p.listener = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.listener = nil
		p.mu.Unlock()
	}
}

// fire delivers a state change synchronously.
func (p *stubProvider) fire(principal *domain.ProviderPrincipal) {
	p.mu.Lock()
	fn := p.listener
	p.mu.Unlock()
	if fn != nil {
		fn(principal)
	}
}

func (p *stubProvider) SignUp(_ context.Context, email, _ string) (*domain.ProviderPrincipal, error) {
	p.mu.Lock()
	p.signUps++
	p.mu.Unlock()
	if p.signUpErr != nil {
		return nil, p.signUpErr
	}
	pr := &domain.ProviderPrincipal{ID: "uid-new", Email: email}
	if p.principal != nil {
		pr = p.principal
	}
	if p.fireOnSignUp {
		p.fire(pr)
	}
	return pr, nil
}

func (p *stubProvider) SignInWithPassword(_ context.Context, email, _ string) (*domain.ProviderPrincipal, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	if p.principal != nil {
		return p.principal, nil
	}
	return &domain.ProviderPrincipal{ID: "uid-1", Email: email}, nil
}

func (p *stubProvider) SignInWithOAuth(_ context.Context, _ ports.OAuthGrant) (*domain.ProviderPrincipal, error) {
	if p.oauthErr != nil {
		return nil, p.oauthErr
	}
	return p.principal, nil
}

func (p *stubProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.signOuts++
	p.mu.Unlock()
	return p.signOutErr
}

func (p *stubProvider) SendPasswordReset(_ context.Context, email string) error {
	p.resets = append(p.resets, email)
	return p.resetErr
}

func (p *stubProvider) UpdateDisplayProfile(_ context.Context, profile domain.DisplayProfile) error {
	p.displayNames = append(p.displayNames, profile.DisplayName)
	return p.profileErr
}

// ---------------------------------------------------------------------------
// Recording session cache and navigator
// ---------------------------------------------------------------------------

type recordingCache struct {
	mu      sync.Mutex
	current *domain.Identity
	writes  int
	readErr error
}

func (c *recordingCache) Read(_ context.Context) (*domain.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.current.Clone(), nil
}

func (c *recordingCache) Write(_ context.Context, id *domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.current = id.Clone()
	return nil
}

func (c *recordingCache) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *recordingCache) stored() *domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

type stubNavigator struct {
	route     string
	requested []string
}

func (n *stubNavigator) CurrentRoute() string { return n.route }

func (n *stubNavigator) RequestNavigation(route string) {
	n.requested = append(n.requested, route)
}
