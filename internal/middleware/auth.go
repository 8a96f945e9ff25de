package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/service"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/logger"
	"github.com/noah-isme/dokumen-api/pkg/response"
)

// ContextUserKey is the gin context key storing token claims.
const ContextUserKey = "currentUser"

// Auth requires a valid access token from the auth cookie or a bearer header. Rejected
// requests carry the logout redirect in meta.redirect_url.
func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authService.ValidateToken(tokenFromRequest(c, authService.CookieName()))
		if err != nil {
			response.Error(c, err, map[string]interface{}{"redirect_url": authService.LogoutURL()})
			c.Abort()
			return
		}
		c.Set(ContextUserKey, claims)
		c.Set(logger.UserIDKey, claims.Identity())
		c.Next()
	}
}

// CurrentClaims returns the claims stored by Auth.
func CurrentClaims(c *gin.Context) (*models.TokenClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.TokenClaims)
	return claims, ok && claims != nil
}

func tokenFromRequest(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

func abortUnauthorized(c *gin.Context) {
	response.Error(c, appErrors.ErrUnauthorized)
	c.Abort()
}
