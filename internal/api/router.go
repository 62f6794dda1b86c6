package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/marketbridge/identity-session/internal/api/docs"
	"github.com/marketbridge/identity-session/internal/api/handler"
	"github.com/marketbridge/identity-session/internal/api/middleware"
	"github.com/marketbridge/identity-session/internal/core/ports"
)

// RouterDeps are the collaborators the HTTP surface is built from.
type RouterDeps struct {
	Session   ports.SessionService
	Navigator *handler.Navigator
	Auth      handler.AuthOptions
	Checks    map[string]handler.Check
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
//
// @title        Identity Session API
// @version      1.0
// @description  Session state and sign-in operations for the UI.
// @BasePath     /
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("identity_session"))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.Session, deps.Auth)
	sessionHandler := handler.NewSessionHandler(deps.Session, deps.Navigator, deps.Log)
	requireSession := middleware.RequireSession(deps.Session)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/signin", authHandler.SignIn)
	auth.POST("/signout", authHandler.SignOut)
	auth.POST("/password-reset", authHandler.PasswordReset)
	auth.GET("/oauth/start", authHandler.OAuthStart)
	auth.GET("/oauth/callback", authHandler.OAuthCallback)

	// --- Session routes ---
	session := e.Group("/session")
	session.GET("", sessionHandler.Get)
	session.GET("/events", sessionHandler.Events)
	session.PUT("/route", sessionHandler.SetRoute)
	session.PATCH("/profile", sessionHandler.PatchProfile, requireSession)
	session.POST("/refresh", sessionHandler.Refresh, requireSession)

	// --- Health probes (no session required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Checks)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
