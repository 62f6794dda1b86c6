package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketbridge/identity-session/internal/core/ports"
)

// SnapshotSource is the read side of the session controller.
type SnapshotSource interface {
	Snapshot() ports.Snapshot
}

// RequireSession rejects requests while no identity is published and injects
// the identity into the context otherwise.
func RequireSession(src SnapshotSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			snap := src.Snapshot()
			if snap.Identity == nil {
				if snap.Loading {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "session is still loading")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}

			c.Set("identity", snap.Identity)
			c.Set("principal_id", snap.Identity.PrincipalID)
			c.Set("role", string(snap.Identity.Role))

			return next(c)
		}
	}
}
