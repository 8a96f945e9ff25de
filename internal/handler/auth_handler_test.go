package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/service"
)

type authServiceMock struct {
	result service.CallbackResult
	token  string
}

func (m *authServiceMock) Callback(_ context.Context, token string) service.CallbackResult {
	m.token = token
	return m.result
}

func (m *authServiceMock) CookieName() string { return "access_token" }
func (m *authServiceMock) CookieTTL() time.Duration { return time.Hour }
func (m *authServiceMock) LoginURL() string { return "https://auth.example.com/?redirect_url=x" }
func (m *authServiceMock) LogoutURL() string { return "https://auth.example.com/logout?redirect_url=x" }

func TestAuthHandlerCallbackSetsCookie(t *testing.T) {
	svc := &authServiceMock{result: service.CallbackResult{Redirect: "/dashboard", Token: "jwt", SetCookie: true}}
	handler := NewAuthHandler(svc, true)

	c, w := newGinContext(http.MethodGet, "/auth/callback?token=jwt", nil)
	handler.Callback(c)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "jwt", svc.token)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "access_token=jwt")
	assert.Contains(t, cookie, "Max-Age=3600")
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "Secure")
	assert.Contains(t, cookie, "SameSite=Strict")
}

func TestAuthHandlerCallbackClearsCookieOnLogout(t *testing.T) {
	svc := &authServiceMock{result: service.CallbackResult{Redirect: "https://auth.example.com/logout", ClearCookie: true}}
	handler := NewAuthHandler(svc, false)

	c, w := newGinContext(http.MethodGet, "/auth/callback?token=bad", nil)
	handler.Callback(c)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://auth.example.com/logout", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAuthHandlerCallbackWithoutTokenRedirectsToLogin(t *testing.T) {
	svc := &authServiceMock{result: service.CallbackResult{Redirect: "https://auth.example.com/?redirect_url=x"}}
	handler := NewAuthHandler(svc, false)

	c, w := newGinContext(http.MethodGet, "/auth/callback", nil)
	handler.Callback(c)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
}
