package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketbridge/identity-session/internal/pkg/validation"
)

// echoValidator lets Echo call c.Validate(req) with the shared validation rules.
type echoValidator struct{}

// NewValidator returns a validator ready to be assigned to echo.Echo.Validator.
func NewValidator() echo.Validator {
	return echoValidator{}
}

// Validate satisfies the echo.Validator interface.
func (echoValidator) Validate(i any) error {
	if err := validation.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
