package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/internal/middleware"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/service"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.TokenClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

// requireUser writes a 401 and returns false when the request carries no identity.
func requireUser(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Identity() == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.Identity(), true
}

// multipartOverhead is the body allowance for form fields and part headers.
const multipartOverhead = 1 << 20

// limitMultipartBody caps the request body at files times maxFileSize plus
// multipartOverhead. A non-positive maxFileSize leaves the body unbounded.
func limitMultipartBody(c *gin.Context, maxFileSize int64, files int) {
	if maxFileSize <= 0 || files <= 0 {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(files)*maxFileSize+multipartOverhead)
}

// multipartError maps a failed form parse. An oversized body is 413, anything else is
// reported as a validation error carrying message.
func multipartError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.Clone(appErrors.ErrFileTooLarge, "request body too large")
	}
	return appErrors.Clone(appErrors.ErrValidation, message)
}

// readFileInput buffers one multipart file. Files larger than limit are not read; their
// declared size is enough for upload validation to reject them.
func readFileInput(fh *multipart.FileHeader, limit int64) (service.FileInput, error) {
	src, err := fh.Open()
	if err != nil {
		return service.FileInput{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer src.Close()

	input := service.FileInput{Name: fh.Filename, Size: fh.Size, MimeType: fh.Header.Get("Content-Type")}
	if limit > 0 && fh.Size > limit {
		return input, nil
	}
	content, err := io.ReadAll(src)
	if err != nil {
		return service.FileInput{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	input.Content = content
	return input, nil
}
