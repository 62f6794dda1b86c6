package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

// ctxIdentity returns the identity injected by the RequireSession middleware.
// Its absence means the route was mounted without the middleware.
func ctxIdentity(c echo.Context) (*domain.Identity, error) {
	id, _ := c.Get("identity").(*domain.Identity)
	if id == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return id, nil
}
