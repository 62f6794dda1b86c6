package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

const defaultHeartbeat = 25 * time.Second

// SessionHandler exposes the published session state to the UI.
type SessionHandler struct {
	svc       ports.SessionService
	nav       *Navigator
	log       zerolog.Logger
	heartbeat time.Duration
}

func NewSessionHandler(svc ports.SessionService, nav *Navigator, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, nav: nav, log: log, heartbeat: defaultHeartbeat}
}

type sessionResponse struct {
	Identity *domain.Identity `json:"identity"`
	Loading  bool             `json:"loading"`
	Redirect string           `json:"redirect,omitempty"`
}

type routeRequest struct {
	Route string `json:"route" validate:"required"`
}

func (h *SessionHandler) response(s ports.Snapshot) sessionResponse {
	return sessionResponse{Identity: s.Identity, Loading: s.Loading, Redirect: h.nav.Pending()}
}

// Get returns the current session snapshot.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *SessionHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.response(h.svc.Snapshot()))
}

// Events streams every session change as a Server-Sent Event named "session".
//
// @Summary      Session change stream
// @Tags         session
// @Produce      text/event-stream
// @Success      200
// @Router       /session/events [get]
func (h *SessionHandler) Events(c echo.Context) error {
	ctx := c.Request().Context()
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Subscribers run under the publish lock: never block, keep the latest.
	updates := make(chan ports.Snapshot, 8)
	unsubscribe := h.svc.Subscribe(func(s ports.Snapshot) {
		for {
			select {
			case updates <- s:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	if err := h.writeEvent(w, h.svc.Snapshot()); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-updates:
			if err := h.writeEvent(w, s); err != nil {
				h.log.Debug().Err(err).Msg("session stream closed")
				return nil
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func (h *SessionHandler) writeEvent(w *echo.Response, s ports.Snapshot) error {
	data, err := json.Marshal(h.response(s))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// SetRoute records the route the UI is showing.
//
// @Summary      Report current UI route
// @Tags         session
// @Accept       json
// @Param        body  body  routeRequest  true  "Current route"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Router       /session/route [put]
func (h *SessionHandler) SetRoute(c echo.Context) error {
	var req routeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	h.nav.SetRoute(req.Route)
	return c.NoContent(http.StatusNoContent)
}

// PatchProfile merges profile fields into the local session only.
//
// @Summary      Patch local profile
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      domain.ProfilePatch  true  "Fields to change"
// @Success      200   {object}  ports.Result
// @Failure      400   {object}  ports.Result
// @Failure      401   {object}  map[string]string
// @Router       /session/profile [patch]
func (h *SessionHandler) PatchProfile(c echo.Context) error {
	if _, err := ctxIdentity(c); err != nil {
		return err
	}
	var patch domain.ProfilePatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	return writeResult(c, http.StatusOK, h.svc.PatchProfile(c.Request().Context(), patch))
}

// Refresh re-resolves the identity from the record store.
//
// @Summary      Refresh identity
// @Tags         session
// @Produce      json
// @Success      200  {object}  ports.Result
// @Failure      401  {object}  map[string]string
// @Router       /session/refresh [post]
func (h *SessionHandler) Refresh(c echo.Context) error {
	if _, err := ctxIdentity(c); err != nil {
		return err
	}
	return writeResult(c, http.StatusOK, h.svc.Refresh(c.Request().Context()))
}
