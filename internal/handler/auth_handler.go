package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/internal/service"
)

type authService interface {
	Callback(ctx context.Context, token string) service.CallbackResult
	CookieName() string
	CookieTTL() time.Duration
	LoginURL() string
	LogoutURL() string
}

// AuthHandler finishes redirects coming back from the external auth service.
type AuthHandler struct {
	service      authService
	secureCookie bool
}

// NewAuthHandler creates a new handler. secureCookie marks the session cookie Secure.
func NewAuthHandler(svc authService, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: svc, secureCookie: secureCookie}
}

// Callback godoc
// @Summary Complete login
// @Description Stores the access token issued by the auth service in a cookie and redirects
// @Tags Authentication
// @Param token query string false "Access token"
// @Success 302
// @Router /auth/callback [get]
func (h *AuthHandler) Callback(c *gin.Context) {
	result := h.service.Callback(c.Request.Context(), c.Query("token"))
	c.SetSameSite(http.SameSiteStrictMode)
	switch {
	case result.SetCookie:
		c.SetCookie(h.service.CookieName(), result.Token, int(h.service.CookieTTL().Seconds()), "/", "", h.secureCookie, true)
	case result.ClearCookie:
		h.clearCookie(c)
	}
	c.Redirect(http.StatusFound, result.Redirect)
}

// Login godoc
// @Summary Redirect to the login page
// @Tags Authentication
// @Success 302
// @Router /auth/login [get]
func (h *AuthHandler) Login(c *gin.Context) {
	c.Redirect(http.StatusFound, h.service.LoginURL())
}

// Logout godoc
// @Summary Clear the session cookie and redirect to the logout page
// @Tags Authentication
// @Success 302
// @Router /auth/logout [get]
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	h.clearCookie(c)
	c.Redirect(http.StatusFound, h.service.LogoutURL())
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetCookie(h.service.CookieName(), "", -1, "/", "", h.secureCookie, true)
}
