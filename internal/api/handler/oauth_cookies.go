package handler

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	stateCookieName = "__oauth_state"
	pkceCookieName  = "__oauth_pkce"
	oauthCookieTTL  = 5 * time.Minute
)

func randomToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *AuthHandler) setOAuthCookie(c echo.Context, name, value string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// generateState stores a fresh state value in a short-lived cookie.
func (h *AuthHandler) generateState(c echo.Context) string {
	state := randomToken()
	h.setOAuthCookie(c, stateCookieName, state, int(oauthCookieTTL.Seconds()))
	return state
}

func validateState(c echo.Context) bool {
	state := c.QueryParam("state")
	if state == "" {
		return false
	}
	cookie, err := c.Cookie(stateCookieName)
	if err != nil {
		return false
	}
	return cookie.Value == state
}

// generatePKCE stores the verifier in a cookie and returns the S256 challenge.
func (h *AuthHandler) generatePKCE(c echo.Context) string {
	verifier := randomToken()
	h.setOAuthCookie(c, pkceCookieName, verifier, int(oauthCookieTTL.Seconds()))

	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func pkceVerifier(c echo.Context) string {
	cookie, err := c.Cookie(pkceCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *AuthHandler) clearOAuthCookies(c echo.Context) {
	h.setOAuthCookie(c, stateCookieName, "", -1)
	h.setOAuthCookie(c, pkceCookieName, "", -1)
}
