package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

func newSessionTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func TestSessionHandler_Get(t *testing.T) {
	e := newSessionTestEcho()
	nav := NewNavigator()
	nav.SetRoute("/signin")
	nav.RequestNavigation("/dashboard")
	stub := &stubSessionService{snap: ports.Snapshot{Identity: &domain.Identity{PrincipalID: "uid-1"}}}
	h := NewSessionHandler(stub, nav, zerolog.Nop())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/session", nil), rec)

	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decodeResult(t, rec)
	if resp["redirect"] != "/dashboard" || resp["loading"] != false {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if id, _ := resp["identity"].(map[string]any); id["principal_id"] != "uid-1" {
		t.Fatalf("unexpected identity: %+v", resp["identity"])
	}
}

func TestSessionHandler_SetRoute(t *testing.T) {
	e := newSessionTestEcho()
	nav := NewNavigator()
	nav.RequestNavigation("/dashboard")
	h := NewSessionHandler(&stubSessionService{}, nav, zerolog.Nop())

	rec := httptest.NewRecorder()
	c := e.NewContext(newJSONRequest(http.MethodPut, "/session/route", `{"route":"/dashboard"}`), rec)
	if err := h.SetRoute(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if nav.CurrentRoute() != "/dashboard" || nav.Pending() != "" {
		t.Fatalf("arriving at the target must settle the redirect, got route %q pending %q", nav.CurrentRoute(), nav.Pending())
	}

	c = e.NewContext(newJSONRequest(http.MethodPut, "/session/route", `{}`), httptest.NewRecorder())
	err := h.SetRoute(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 validation error, got %v", err)
	}
}

func TestSessionHandler_PatchProfile(t *testing.T) {
	e := newSessionTestEcho()
	var got domain.ProfilePatch
	stub := &stubSessionService{
		patchFn: func(_ context.Context, patch domain.ProfilePatch) ports.Result {
			got = patch
			return ports.Result{Success: true, Identity: &domain.Identity{Phone: *patch.Phone}}
		},
	}
	h := NewSessionHandler(stub, NewNavigator(), zerolog.Nop())

	// Mounted without the session middleware.
	c := e.NewContext(newJSONRequest(http.MethodPatch, "/session/profile", `{"phone":"111"}`), httptest.NewRecorder())
	if err, ok := h.PatchProfile(c).(*echo.HTTPError); !ok || err.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an identity in context, got %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(newJSONRequest(http.MethodPatch, "/session/profile", `{"phone":"111"}`), rec)
	c.Set("identity", &domain.Identity{PrincipalID: "uid-1"})
	if err := h.PatchProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.Phone == nil || *got.Phone != "111" || got.Address != nil {
		t.Fatalf("unexpected patch: %+v", got)
	}
}

func TestSessionHandler_Refresh_NoSession(t *testing.T) {
	e := newSessionTestEcho()
	stub := &stubSessionService{
		refreshFn: func(context.Context) ports.Result {
			return ports.Result{Code: domain.CodeNoSession, Message: "no session"}
		},
	}
	h := NewSessionHandler(stub, NewNavigator(), zerolog.Nop())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/session/refresh", nil), rec)
	c.Set("identity", &domain.Identity{PrincipalID: "uid-1"})
	if err := h.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionHandler_Events(t *testing.T) {
	e := newSessionTestEcho()
	stub := &stubSessionService{snap: ports.Snapshot{Loading: true}}
	h := NewSessionHandler(stub, NewNavigator(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/session/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	done := make(chan error, 1)
	go func() { done <- h.Events(c) }()

	deadline := time.Now().Add(2 * time.Second)
	for stub.subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	stub.publish(ports.Snapshot{Identity: &domain.Identity{PrincipalID: "uid-1"}})

	// Give the stream a moment to write the update before closing it.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the client went away")
	}

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if n := strings.Count(body, "event: session\n"); n != 2 {
		t.Fatalf("expected initial and updated events, got %d in %q", n, body)
	}
	if !strings.Contains(body, `"principal_id":"uid-1"`) {
		t.Fatalf("update missing from stream: %q", body)
	}
	if stub.subscribers() != 0 {
		t.Fatal("stream must unsubscribe when it ends")
	}
}

func TestNavigator(t *testing.T) {
	n := NewNavigator()
	n.SetRoute("/signin")
	n.RequestNavigation("/dashboard")

	if n.Pending() != "/dashboard" {
		t.Fatalf("expected pending redirect, got %q", n.Pending())
	}
	n.SetRoute("/signup")
	if n.Pending() != "/dashboard" {
		t.Fatal("moving elsewhere must keep the redirect pending")
	}
	n.SetRoute("/dashboard")
	if n.Pending() != "" || n.CurrentRoute() != "/dashboard" {
		t.Fatalf("arrival must settle the redirect, got pending %q", n.Pending())
	}
}
