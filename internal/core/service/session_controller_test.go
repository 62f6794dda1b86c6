package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	ctrl     *SessionController
	provider *stubProvider
	store    *stubRecordStore
	cache    *recordingCache
	nav      *stubNavigator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider: &stubProvider{},
		store:    newStubRecordStore(),
		cache:    &recordingCache{},
		nav:      &stubNavigator{},
	}
	h.ctrl = NewSessionController(h.provider, h.store, h.cache, zerolog.Nop(), Options{
		Redirect:  RedirectPolicy{AuthOnlyRoutes: []string{"/login", "/signup"}, LandingRoute: "/"},
		Navigator: h.nav,
	})
	h.ctrl.now = func() time.Time { return fixedNow }
	h.ctrl.resolver.now = func() time.Time { return fixedNow }
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.ctrl.Start(context.Background())
	t.Cleanup(h.ctrl.Close)
}

func validSignUp() ports.SignUpInput {
	return ports.SignUpInput{
		Name:     "Amina",
		Email:    "Amina@X.com",
		Password: "secret1",
		Country:  "KE",
	}
}

// ---------------------------------------------------------------------------
// Hydration and observer
// ---------------------------------------------------------------------------

func TestStart_HydratesFromCache(t *testing.T) {
	h := newHarness(t)
	h.cache.current = &domain.Identity{PrincipalID: "uid-1", Email: "a@x.com", Role: domain.RoleBusiness}

	h.start(t)

	snap := h.ctrl.Snapshot()
	if snap.Loading {
		t.Error("loading must be false after hydrating a cached identity")
	}
	if snap.Identity == nil || snap.Identity.Role != domain.RoleBusiness {
		t.Errorf("expected cached identity, got %+v", snap.Identity)
	}
}

func TestStart_EmptyCacheWaitsForProvider(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if !h.ctrl.Snapshot().Loading {
		t.Fatal("loading must stay true until the provider answers")
	}

	h.provider.fire(nil)

	snap := h.ctrl.Snapshot()
	if snap.Loading || snap.Identity != nil {
		t.Errorf("expected signed out and not loading, got %+v", snap)
	}
}

func TestObserver_ResolvesWritesCacheAndRedirects(t *testing.T) {
	h := newHarness(t)
	h.store.put(domain.CollectionUsers, "shop@x.com", &domain.ProfileRecord{Name: "Shop", Role: domain.RoleBusiness})
	h.nav.route = "/login"
	h.start(t)

	h.provider.fire(&domain.ProviderPrincipal{ID: "uid-2", Email: "Shop@X.com"})

	snap := h.ctrl.Snapshot()
	if snap.Identity == nil || snap.Identity.Role != domain.RoleBusiness {
		t.Fatalf("expected business identity, got %+v", snap.Identity)
	}
	if cached := h.cache.stored(); cached == nil || cached.PrincipalID != "uid-2" {
		t.Errorf("cache must hold the published identity, got %+v", cached)
	}
	if len(h.nav.requested) != 1 || h.nav.requested[0] != "/" {
		t.Errorf("expected one redirect to /, got %v", h.nav.requested)
	}
}

func TestObserver_NoRedirectOutsideAuthRoutes(t *testing.T) {
	h := newHarness(t)
	h.nav.route = "/orders"
	h.start(t)

	h.provider.fire(&domain.ProviderPrincipal{ID: "uid-1", Email: "a@x.com"})

	if len(h.nav.requested) != 0 {
		t.Errorf("unexpected redirect %v", h.nav.requested)
	}
}

func TestObserver_SignedOutClearsCache(t *testing.T) {
	h := newHarness(t)
	h.cache.current = &domain.Identity{PrincipalID: "uid-1"}
	h.start(t)

	h.provider.fire(nil)

	if h.ctrl.Snapshot().Identity != nil {
		t.Error("identity must be cleared")
	}
	if h.cache.stored() != nil {
		t.Error("cache must be cleared")
	}
}

func TestObserver_SamePrincipalMergesProfile(t *testing.T) {
	h := newHarness(t)
	h.store.put(domain.CollectionUsers, "a@x.com", &domain.ProfileRecord{Phone: "111"})
	h.start(t)
	p := &domain.ProviderPrincipal{ID: "uid-1", Email: "a@x.com"}

	h.provider.fire(p)
	if got := h.ctrl.Snapshot().Identity.Phone; got != "111" {
		t.Fatalf("phone: want 111, got %q", got)
	}

	// Second resolution carries no phone: the known value is kept.
	h.store.put(domain.CollectionUsers, "a@x.com", &domain.ProfileRecord{Address: "Main St"})
	h.provider.fire(p)

	id := h.ctrl.Snapshot().Identity
	if id.Phone != "111" || id.Address != "Main St" {
		t.Errorf("expected merged profile, got phone=%q address=%q", id.Phone, id.Address)
	}
}

func TestObserver_StaleResolutionIsDropped(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	signedOut := false
	h.store.onGet = func(collection, _ string) {
		// The user signs out while the resolution is still talking to the store.
		if collection == domain.CollectionUsers && !signedOut {
			signedOut = true
			h.ctrl.SignOut(context.Background())
		}
	}

	h.provider.fire(&domain.ProviderPrincipal{ID: "uid-1", Email: "a@x.com"})

	if id := h.ctrl.Snapshot().Identity; id != nil {
		t.Errorf("late resolution must not resurrect a signed-out session, got %+v", id)
	}
	if h.cache.stored() != nil {
		t.Error("cache must stay cleared")
	}
}

func TestSubscribe_ReceivesChangesUntilUnsubscribed(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	var got []ports.Snapshot
	unsubscribe := h.ctrl.Subscribe(func(s ports.Snapshot) { got = append(got, s) })

	h.provider.fire(&domain.ProviderPrincipal{ID: "uid-1", Email: "a@x.com"})
	unsubscribe()
	unsubscribe()
	h.provider.fire(nil)

	if len(got) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(got))
	}
	if got[0].Identity == nil || got[0].Loading {
		t.Errorf("unexpected snapshot %+v", got[0])
	}
}

// ---------------------------------------------------------------------------
// SignUp
// ---------------------------------------------------------------------------

func TestSignUp_Success(t *testing.T) {
	h := newHarness(t)
	h.provider.fireOnSignUp = true
	h.start(t)

	res := h.ctrl.SignUp(context.Background(), validSignUp())

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	id := res.Identity
	if id.Role != domain.RoleUser || id.IsAdmin {
		t.Errorf("new account must get the default role, got %+v", id)
	}
	if id.NormalizedEmail != "amina@x.com" || id.DisplayName != "Amina" || id.Country != "KE" {
		t.Errorf("identity must reflect the written record, got %+v", id)
	}
	if !id.Subscription.IsTrial || id.Subscription.Plan != "pro" {
		t.Errorf("expected pro trial, got %+v", id.Subscription)
	}
	if id.Subscription.EndsAt == nil || !id.Subscription.EndsAt.Equal(fixedNow.Add(14*24*time.Hour)) {
		t.Errorf("unexpected trial end %v", id.Subscription.EndsAt)
	}

	rec := h.store.record(domain.CollectionUsers, "amina@x.com")
	if rec == nil || rec.Role != domain.RoleUser || rec.Subscription == nil {
		t.Fatalf("users record not written as expected: %+v", rec)
	}
	if len(h.provider.displayNames) != 1 || h.provider.displayNames[0] != "Amina" {
		t.Errorf("display name not pushed to provider: %v", h.provider.displayNames)
	}
	if h.ctrl.GuardState() != GuardIdle {
		t.Error("guard must be released")
	}
	if cached := h.cache.stored(); cached == nil || cached.PrincipalID != "uid-new" {
		t.Errorf("cache must hold the new identity, got %+v", cached)
	}
}

func TestSignUp_IgnoresStateChangeWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.provider.fireOnSignUp = true
	h.start(t)

	var seen []*domain.Identity
	h.ctrl.Subscribe(func(s ports.Snapshot) { seen = append(seen, s.Identity) })

	res := h.ctrl.SignUp(context.Background(), validSignUp())
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	// Only the direct publish reaches subscribers: no half-written identity.
	if len(seen) != 1 {
		t.Fatalf("expected one notification, got %d", len(seen))
	}
	if seen[0].Subscription.Plan != "pro" {
		t.Errorf("published identity must include the written record, got %+v", seen[0])
	}
}

func TestGuard_ObserverCallbacksMutateNothing(t *testing.T) {
	h := newHarness(t)
	h.cache.current = &domain.Identity{PrincipalID: "uid-1", Email: "a@x.com", Role: domain.RoleBusiness}
	h.store.put(domain.CollectionUsers, "b@x.com", &domain.ProfileRecord{Role: domain.RoleBusiness})
	h.start(t)

	release := h.ctrl.beginSignup()
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			h.provider.fire(&domain.ProviderPrincipal{ID: "uid-9", Email: "b@x.com"})
		} else {
			h.provider.fire(nil)
		}
	}

	if n := h.cache.writeCount(); n != 0 {
		t.Errorf("expected no cache writes while sign-up is in flight, got %d", n)
	}
	if id := h.ctrl.Snapshot().Identity; id == nil || id.PrincipalID != "uid-1" {
		t.Errorf("identity must be untouched while sign-up is in flight, got %+v", id)
	}

	release()
	if h.ctrl.GuardState() != GuardIdle {
		t.Fatal("guard must be idle after release")
	}

	h.provider.fire(nil)
	if n := h.cache.writeCount(); n != 1 {
		t.Errorf("observer must resume after release, got %d cache writes", n)
	}
	if h.ctrl.Snapshot().Identity != nil {
		t.Error("expected signed out after release")
	}
}

func TestSignUp_AdminRecordElevates(t *testing.T) {
	h := newHarness(t)
	h.store.put(domain.CollectionAdmins, "amina@x.com", &domain.ProfileRecord{})
	h.start(t)

	res := h.ctrl.SignUp(context.Background(), validSignUp())

	if !res.Success || res.Identity.Role != domain.RoleAdmin || !res.Identity.IsAdmin {
		t.Errorf("expected admin identity, got %+v", res)
	}
}

func TestSignUp_BusinessRole(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	in := validSignUp()
	in.Role = domain.RoleBusiness
	in.BusinessName = "Amina Foods"
	in.BusinessAddress = "Market Rd"

	res := h.ctrl.SignUp(context.Background(), in)
	if !res.Success || res.Identity.Role != domain.RoleBusiness || res.Identity.BusinessName != "Amina Foods" {
		t.Errorf("expected business identity, got %+v", res)
	}
}

func TestSignUp_ValidationFailsBeforeIO(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *ports.SignUpInput)
	}{
		{"missing name", func(in *ports.SignUpInput) { in.Name = "  " }},
		{"bad email", func(in *ports.SignUpInput) { in.Email = "not-an-email" }},
		{"short password", func(in *ports.SignUpInput) { in.Password = "12345" }},
		{"password over bcrypt limit", func(in *ports.SignUpInput) { in.Password = strings.Repeat("a", 80) }},
		{"multi-byte password over bcrypt limit", func(in *ports.SignUpInput) { in.Password = strings.Repeat("€", 30) }},
		{"admin role", func(in *ports.SignUpInput) { in.Role = domain.RoleAdmin }},
		{"business without name", func(in *ports.SignUpInput) { in.Role = domain.RoleBusiness }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.start(t)
			in := validSignUp()
			tt.mutate(&in)

			res := h.ctrl.SignUp(context.Background(), in)

			if res.Success || res.Code != domain.CodeValidation {
				t.Fatalf("expected validation failure, got %+v", res)
			}
			if res.Message == "" {
				t.Error("validation failure must carry a message")
			}
			if h.provider.signUps != 0 || h.store.sets != 0 || len(h.provider.displayNames) != 0 {
				t.Error("no I/O may happen on validation failure")
			}
			if h.ctrl.GuardState() != GuardIdle {
				t.Error("validation failure must not touch the guard")
			}
		})
	}
}

func TestSignUp_ProviderErrorsAreClassified(t *testing.T) {
	tests := []struct {
		err  error
		want domain.ErrorCode
	}{
		{domain.ErrEmailInUse, domain.CodeEmailInUse},
		{domain.ErrWeakPassword, domain.CodeWeakPassword},
		{errors.New("boom"), domain.CodeProvider},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			h := newHarness(t)
			h.provider.signUpErr = tt.err
			h.start(t)

			res := h.ctrl.SignUp(context.Background(), validSignUp())

			if res.Success || res.Code != tt.want {
				t.Errorf("want code %q, got %+v", tt.want, res)
			}
			if h.store.sets != 0 {
				t.Error("record store must not be written when the provider refused")
			}
			if h.ctrl.GuardState() != GuardIdle {
				t.Error("guard must be released on failure")
			}
		})
	}
}

func TestSignUp_StoreFailureSignsOut(t *testing.T) {
	h := newHarness(t)
	h.provider.fireOnSignUp = true
	h.store.setErr = errors.New("write concern failed")
	h.start(t)

	res := h.ctrl.SignUp(context.Background(), validSignUp())

	if res.Success || res.Code != domain.CodeStore {
		t.Fatalf("expected store failure, got %+v", res)
	}
	if h.provider.signOuts != 1 {
		t.Errorf("expected a best-effort sign-out, got %d", h.provider.signOuts)
	}
	if h.ctrl.Snapshot().Identity != nil {
		t.Error("identity must remain none after a failed sign-up")
	}
	if h.ctrl.GuardState() != GuardIdle {
		t.Error("guard must be released on failure")
	}
}

func TestSignUp_DisplayProfileFailureSignsOut(t *testing.T) {
	h := newHarness(t)
	h.provider.profileErr = errors.New("quota")
	h.start(t)

	res := h.ctrl.SignUp(context.Background(), validSignUp())

	if res.Success || res.Code != domain.CodeProvider {
		t.Fatalf("expected provider failure, got %+v", res)
	}
	if h.provider.signOuts != 1 || h.ctrl.Snapshot().Identity != nil {
		t.Error("failed sign-up must leave the session signed out")
	}
}

// ---------------------------------------------------------------------------
// Sign in
// ---------------------------------------------------------------------------

func TestSignInWithPassword(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	res := h.ctrl.SignInWithPassword(context.Background(), "A@X.com", "secret1")
	if !res.Success || res.Identity != nil {
		t.Errorf("password sign-in resolves through the observer, got %+v", res)
	}

	h.provider.signInErr = domain.ErrWrongCredential
	res = h.ctrl.SignInWithPassword(context.Background(), "a@x.com", "nope")
	if res.Success || res.Code != domain.CodeWrongCredential {
		t.Errorf("expected wrong_credential, got %+v", res)
	}

	res = h.ctrl.SignInWithPassword(context.Background(), "", "")
	if res.Code != domain.CodeValidation {
		t.Errorf("expected validation failure, got %+v", res)
	}
}

func TestSignInWithOAuth_FirstSignInCreatesDefaultRecord(t *testing.T) {
	h := newHarness(t)
	h.provider.principal = &domain.ProviderPrincipal{ID: "g-1", Email: "New@Gmail.com", DisplayName: "New Person", PhotoURL: "https://img/1"}
	h.start(t)

	res := h.ctrl.SignInWithOAuth(context.Background(), ports.OAuthGrant{Code: "c"})

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	rec := h.store.record(domain.CollectionUsers, "new@gmail.com")
	if rec == nil || rec.Role != domain.DefaultRole || rec.Name != "New Person" || rec.Subscription == nil {
		t.Fatalf("default record not created: %+v", rec)
	}
	if res.Identity.PhotoURL != "https://img/1" || !res.Identity.Subscription.IsTrial {
		t.Errorf("unexpected identity %+v", res.Identity)
	}
	if h.ctrl.GuardState() != GuardIdle {
		t.Error("guard must be released")
	}
}

func TestSignInWithOAuth_ReturningUserFillsMissingFields(t *testing.T) {
	h := newHarness(t)
	h.store.put(domain.CollectionUsers, "shop@x.com", &domain.ProfileRecord{Name: "Chosen Name", Role: domain.RoleBusiness})
	h.provider.principal = &domain.ProviderPrincipal{ID: "g-2", Email: "shop@x.com", DisplayName: "Provider Name", PhotoURL: "https://img/2"}
	h.start(t)

	res := h.ctrl.SignInWithOAuth(context.Background(), ports.OAuthGrant{Code: "c"})

	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	rec := h.store.record(domain.CollectionUsers, "shop@x.com")
	if rec.Name != "Chosen Name" {
		t.Errorf("user-chosen name must not be overwritten, got %q", rec.Name)
	}
	if rec.PhotoURL != "https://img/2" {
		t.Errorf("missing photo must be filled in, got %q", rec.PhotoURL)
	}
	if res.Identity.Role != domain.RoleBusiness || res.Identity.DisplayName != "Chosen Name" {
		t.Errorf("unexpected identity %+v", res.Identity)
	}
}

func TestSignInWithOAuth_StoreReadFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.store.getErr[domain.CollectionUsers] = errors.New("no primary")
	h.provider.principal = &domain.ProviderPrincipal{ID: "g-3", Email: "x@y.com"}
	h.start(t)

	res := h.ctrl.SignInWithOAuth(context.Background(), ports.OAuthGrant{Code: "c"})

	if res.Success || res.Code != domain.CodeStore {
		t.Fatalf("expected store failure, got %+v", res)
	}
	if h.provider.signOuts != 1 || h.ctrl.Snapshot().Identity != nil {
		t.Error("failed oauth sign-in must leave the session signed out")
	}
}

// ---------------------------------------------------------------------------
// SignOut, reset, patch, refresh
// ---------------------------------------------------------------------------

func TestSignOut_ClearsEvenWhenProviderFails(t *testing.T) {
	h := newHarness(t)
	h.cache.current = &domain.Identity{PrincipalID: "uid-1"}
	h.provider.signOutErr = errors.New("network down")
	h.start(t)

	res := h.ctrl.SignOut(context.Background())

	if !res.Success {
		t.Errorf("sign-out must succeed locally, got %+v", res)
	}
	if h.ctrl.Snapshot().Identity != nil || h.cache.stored() != nil {
		t.Error("identity and cache must be cleared")
	}
}

func TestSendPasswordReset(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	res := h.ctrl.SendPasswordReset(context.Background(), "nope")
	if res.Code != domain.CodeInvalidEmail || len(h.provider.resets) != 0 {
		t.Errorf("invalid email must fail before reaching the provider, got %+v", res)
	}

	res = h.ctrl.SendPasswordReset(context.Background(), " A@X.com ")
	if !res.Success || len(h.provider.resets) != 1 || h.provider.resets[0] != "a@x.com" {
		t.Errorf("expected normalized reset request, got %+v %v", res, h.provider.resets)
	}

	h.provider.resetErr = domain.ErrRateLimited
	res = h.ctrl.SendPasswordReset(context.Background(), "a@x.com")
	if res.Code != domain.CodeRateLimited {
		t.Errorf("expected rate_limited, got %+v", res)
	}
}

func TestPatchProfile(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	res := h.ctrl.PatchProfile(context.Background(), domain.ProfilePatch{Phone: strPtr("111")})
	if res.Code != domain.CodeNoSession {
		t.Fatalf("expected no_session, got %+v", res)
	}

	h.provider.fire(&domain.ProviderPrincipal{ID: "uid-1", Email: "a@x.com"})
	h.ctrl.PatchProfile(context.Background(), domain.ProfilePatch{Phone: strPtr("111")})
	res = h.ctrl.PatchProfile(context.Background(), domain.ProfilePatch{Address: strPtr("X")})

	if !res.Success || res.Identity.Phone != "111" || res.Identity.Address != "X" {
		t.Errorf("patches must accumulate, got %+v", res)
	}
	if cached := h.cache.stored(); cached.Phone != "111" || cached.Address != "X" {
		t.Errorf("cache must follow patches, got %+v", cached)
	}
	if h.store.sets != 0 {
		t.Error("patch must not write the record store")
	}

	res = h.ctrl.PatchProfile(context.Background(), domain.ProfilePatch{})
	if res.Code != domain.CodeValidation {
		t.Errorf("empty patch must be rejected, got %+v", res)
	}
}

func TestRefresh_PicksUpStoreChanges(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.provider.fire(&domain.ProviderPrincipal{ID: "uid-1", Email: "a@x.com"})

	h.store.put(domain.CollectionUsers, "a@x.com", &domain.ProfileRecord{Role: domain.RoleBusiness, BusinessName: "Kiosk"})
	res := h.ctrl.Refresh(context.Background())

	if !res.Success || res.Identity.Role != domain.RoleBusiness || res.Identity.BusinessName != "Kiosk" {
		t.Errorf("refresh must reflect the store, got %+v", res)
	}
	if res.Identity.PrincipalID != "uid-1" {
		t.Errorf("principal must be kept, got %q", res.Identity.PrincipalID)
	}
}

func TestRefresh_DegradedKeepsRole(t *testing.T) {
	h := newHarness(t)
	h.store.put(domain.CollectionUsers, "a@x.com", &domain.ProfileRecord{Role: domain.RoleBusiness})
	h.start(t)
	h.provider.fire(&domain.ProviderPrincipal{ID: "uid-1", Email: "a@x.com"})

	h.store.getErr[domain.CollectionUsers] = errors.New("timeout")
	res := h.ctrl.Refresh(context.Background())

	if !res.Success || res.Identity.Role != domain.RoleBusiness {
		t.Errorf("a failed lookup must not demote, got %+v", res)
	}
}

func TestRefresh_NoSession(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if res := h.ctrl.Refresh(context.Background()); res.Code != domain.CodeNoSession {
		t.Errorf("expected no_session, got %+v", res)
	}
}

func strPtr(s string) *string { return &s }
