package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/service"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/response"
)

type documentService interface {
	List(ctx context.Context, userID string, query dto.ListDocumentsQuery) ([]models.Document, *models.Pagination, error)
	Get(ctx context.Context, userID, id string) (*models.Document, error)
	Upload(ctx context.Context, userID string, file service.FileInput, req dto.UploadDocumentRequest, onProgress service.ProgressFunc) (*models.Document, error)
	Update(ctx context.Context, userID, id string, req dto.UpdateDocumentRequest) (*models.Document, error)
	Delete(ctx context.Context, userID, id string) error
	Extract(ctx context.Context, userID, id string) (*models.ExtractionResult, error)
	DownloadURL(ctx context.Context, userID, id string) (string, time.Time, error)
	Download(ctx context.Context, id, token string) (*service.DocumentDownload, error)
}

// DocumentHandler serves the document API.
type DocumentHandler struct {
	service     documentService
	maxFileSize int64
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{service: service, maxFileSize: maxFileSize}
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Param sort_by query string false "uploaded_at|title|expiry_date|status"
// @Param sort_order query string false "asc|desc"
// @Param type query string false "Document type"
// @Param status query string false "Document status"
// @Param search query string false "Title search"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var query dto.ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	docs, pagination, err := h.service.List(c.Request.Context(), userID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Upload godoc
// @Summary Upload a document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document image or PDF"
// @Param title formData string false "Title"
// @Success 201 {object} response.Envelope
// @Router /documents/upload [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limitMultipartBody(c, h.maxFileSize, 1)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, multipartError(err, "file is required"))
		return
	}
	input, err := readFileInput(fileHeader, h.maxFileSize)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	req := dto.UploadDocumentRequest{Title: strings.TrimSpace(c.PostForm("title"))}
	doc, err := h.service.Upload(c.Request.Context(), userID, input, req, nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Get godoc
// @Summary Get a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update godoc
// @Summary Update a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Partial update"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	doc, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Extract godoc
// @Summary Extract document data
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/extract [post]
func (h *DocumentHandler) Extract(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := h.service.Extract(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DownloadURL godoc
// @Summary Issue a signed download link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	url, expiresAt, err := h.service.DownloadURL(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url, "expiresAt": expiresAt}, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.Body.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.Body, nil)
}
