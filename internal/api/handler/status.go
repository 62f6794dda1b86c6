package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketbridge/identity-session/internal/core/domain"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

// StatusFor maps a classified failure to its HTTP status code.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation, domain.CodeInvalidEmail, domain.CodeWeakPassword:
		return http.StatusBadRequest
	case domain.CodeWrongCredential, domain.CodeNoSession:
		return http.StatusUnauthorized
	case domain.CodeDisabled:
		return http.StatusForbidden
	case domain.CodeNoSuchAccount:
		return http.StatusNotFound
	case domain.CodeEmailInUse:
		return http.StatusConflict
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(c echo.Context, okStatus int, res ports.Result) error {
	if !res.Success {
		return c.JSON(StatusFor(res.Code), res)
	}
	return c.JSON(okStatus, res)
}
