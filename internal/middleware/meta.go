package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/pkg/middleware/requestid"
	"github.com/noah-isme/dokumen-api/pkg/response"
)

// WithResponseMeta seeds every envelope's meta block with the request id.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := requestid.Value(c); id != "" {
			response.SetMeta(c, "request_id", id)
		}
		c.Next()
	}
}
