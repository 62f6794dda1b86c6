package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marketbridge/identity-session/internal/core/ports"
)

// OAuthStarter builds the provider authorization URL.
type OAuthStarter interface {
	AuthCodeURL(state, codeChallenge string) string
}

// AuthOptions tunes the AuthHandler.
type AuthOptions struct {
	// OAuth may be nil, which disables the OAuth routes.
	OAuth OAuthStarter
	// SecureCookies marks the OAuth state cookies Secure. Disable only for
	// plain-http local development.
	SecureCookies bool
	// OAuthSuccessURL, when set, is where the callback redirects after a
	// successful sign-in instead of answering with JSON.
	OAuthSuccessURL string
}

type AuthHandler struct {
	svc             ports.SessionService
	oauth           OAuthStarter
	secureCookies   bool
	oauthSuccessURL string
}

func NewAuthHandler(svc ports.SessionService, opts AuthOptions) *AuthHandler {
	return &AuthHandler{
		svc:             svc,
		oauth:           opts.OAuth,
		secureCookies:   opts.SecureCookies,
		oauthSuccessURL: opts.OAuthSuccessURL,
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// SignUp creates an account and signs it in.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      ports.SignUpInput  true  "Sign-up form"
// @Success      201   {object}  ports.Result
// @Failure      400   {object}  ports.Result
// @Failure      409   {object}  ports.Result
// @Failure      500   {object}  ports.Result
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req ports.SignUpInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	return writeResult(c, http.StatusCreated, h.svc.SignUp(c.Request().Context(), req))
}

// SignIn verifies email and password. The identity follows on the session stream.
//
// @Summary      Sign in with password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  ports.Result
// @Failure      400   {object}  ports.Result
// @Failure      401   {object}  ports.Result
// @Failure      403   {object}  ports.Result
// @Failure      404   {object}  ports.Result
// @Router       /auth/signin [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	return writeResult(c, http.StatusOK, h.svc.SignInWithPassword(c.Request().Context(), req.Email, req.Password))
}

// SignOut ends the session. It always succeeds locally.
//
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  ports.Result
// @Router       /auth/signout [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	return writeResult(c, http.StatusOK, h.svc.SignOut(c.Request().Context()))
}

// PasswordReset asks the provider to send a reset link.
//
// @Summary      Request password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      passwordResetRequest  true  "Account email"
// @Success      202   {object}  ports.Result
// @Failure      400   {object}  ports.Result
// @Failure      404   {object}  ports.Result
// @Failure      429   {object}  ports.Result
// @Router       /auth/password-reset [post]
func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req passwordResetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	return writeResult(c, http.StatusAccepted, h.svc.SendPasswordReset(c.Request().Context(), req.Email))
}

// OAuthStart redirects the browser to the OAuth provider.
//
// @Summary      Start OAuth sign-in
// @Tags         auth
// @Success      302
// @Failure      404  {object}  map[string]string
// @Router       /auth/oauth/start [get]
func (h *AuthHandler) OAuthStart(c echo.Context) error {
	if h.oauth == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "oauth sign-in is not configured"})
	}
	state := h.generateState(c)
	challenge := h.generatePKCE(c)
	return c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state, challenge))
}

// OAuthCallback completes OAuth sign-in.
//
// @Summary      OAuth callback
// @Tags         auth
// @Produce      json
// @Param        code   query     string  true  "Authorization code"
// @Param        state  query     string  true  "State"
// @Success      200    {object}  ports.Result
// @Success      303
// @Failure      400    {object}  map[string]string
// @Router       /auth/oauth/callback [get]
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	if h.oauth == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "oauth sign-in is not configured"})
	}
	if msg := c.QueryParam("error"); msg != "" {
		h.clearOAuthCookies(c)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "oauth provider returned: " + msg})
	}
	if !validateState(c) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid oauth state"})
	}
	code := c.QueryParam("code")
	verifier := pkceVerifier(c)
	if code == "" || verifier == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing code or verifier"})
	}
	h.clearOAuthCookies(c)

	res := h.svc.SignInWithOAuth(c.Request().Context(), ports.OAuthGrant{Code: code, CodeVerifier: verifier})
	if res.Success && h.oauthSuccessURL != "" {
		return c.Redirect(http.StatusSeeOther, h.oauthSuccessURL)
	}
	return writeResult(c, http.StatusOK, res)
}
