package handler

import (
	"context"
	"sync"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

type stubSessionService struct {
	mu   sync.Mutex
	snap ports.Snapshot
	subs []func(ports.Snapshot)

	signUpFn  func(ctx context.Context, in ports.SignUpInput) ports.Result
	signInFn  func(ctx context.Context, email, password string) ports.Result
	oauthFn   func(ctx context.Context, grant ports.OAuthGrant) ports.Result
	resetFn   func(ctx context.Context, email string) ports.Result
	patchFn   func(ctx context.Context, patch domain.ProfilePatch) ports.Result
	refreshFn func(ctx context.Context) ports.Result
	signOuts  int
}

func (s *stubSessionService) Snapshot() ports.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubSessionService) Subscribe(fn func(ports.Snapshot)) func() {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.subs[idx] = nil
		s.mu.Unlock()
	}
}

// publish replaces the snapshot and notifies live subscribers.
func (s *stubSessionService) publish(snap ports.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	subs := append([]func(ports.Snapshot){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(snap)
		}
	}
}

func (s *stubSessionService) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, fn := range s.subs {
		if fn != nil {
			n++
		}
	}
	return n
}

func (s *stubSessionService) SignUp(ctx context.Context, in ports.SignUpInput) ports.Result {
	return s.signUpFn(ctx, in)
}

func (s *stubSessionService) SignInWithPassword(ctx context.Context, email, password string) ports.Result {
	return s.signInFn(ctx, email, password)
}

func (s *stubSessionService) SignInWithOAuth(ctx context.Context, grant ports.OAuthGrant) ports.Result {
	return s.oauthFn(ctx, grant)
}

func (s *stubSessionService) SignOut(context.Context) ports.Result {
	s.signOuts++
	return ports.Result{Success: true}
}

func (s *stubSessionService) SendPasswordReset(ctx context.Context, email string) ports.Result {
	return s.resetFn(ctx, email)
}

func (s *stubSessionService) PatchProfile(ctx context.Context, patch domain.ProfilePatch) ports.Result {
	return s.patchFn(ctx, patch)
}

func (s *stubSessionService) Refresh(ctx context.Context) ports.Result {
	return s.refreshFn(ctx)
}

type stubOAuth struct {
	state, challenge string
}

func (o *stubOAuth) AuthCodeURL(state, challenge string) string {
	o.state, o.challenge = state, challenge
	return "https://idp.example.com/authorize?state=" + state
}
