package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

const metaContextKey = "response_meta"

// Envelope represents the common response contract: { success, data?, message? } plus
// structured error, pagination and meta blocks.
type Envelope struct {
	Success    bool                   `json:"success"`
	Data       interface{}            `json:"data,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Success: true, Data: data, Pagination: pagination}
	envelope.Meta = mergeMeta(c, meta...)
	c.JSON(status, envelope)
}

// Message sends a success response carrying only a human readable message.
func Message(c *gin.Context, status int, message string) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Success: true, Message: message, Meta: mergeMeta(c)})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error, meta ...map[string]interface{}) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{
		Success: false,
		Message: appErr.Message,
		Error:   appErr,
		Meta:    mergeMeta(c, meta...),
	})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// SetMeta records a metadata entry that the next envelope written for this request carries.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	meta, _ := c.Get(metaContextKey)
	typed, ok := meta.(map[string]interface{})
	if !ok {
		typed = map[string]interface{}{}
		c.Set(metaContextKey, typed)
	}
	typed[key] = value
}

func mergeMeta(c *gin.Context, extra ...map[string]interface{}) map[string]interface{} {
	var merged map[string]interface{}
	if c != nil {
		if meta, exists := c.Get(metaContextKey); exists {
			if typed, ok := meta.(map[string]interface{}); ok && len(typed) > 0 {
				merged = make(map[string]interface{}, len(typed))
				for k, v := range typed {
					merged[k] = v
				}
			}
		}
	}
	for _, m := range extra {
		if len(m) == 0 {
			continue
		}
		if merged == nil {
			merged = make(map[string]interface{}, len(m))
		}
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
