package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/dokumen-api/pkg/config"
)

func TestRateLimitReturns429WithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(1, 1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	router := gin.New()
	router.Use(RateLimitWith(limiter))
	router.POST("/upload", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send().Code)
	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, send().Code)
}

func TestRateLimitSeparatesCallers(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	ok, _ := limiter.Reserve("user-1")
	assert.True(t, ok)
	ok, _ = limiter.Reserve("user-2")
	assert.True(t, ok)
	ok, wait := limiter.Reserve("user-1")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(config.RateLimitConfig{}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
