package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/service"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/response"
)

type sessionService interface {
	Create(ctx context.Context, userID string) (*dto.SessionSnapshot, error)
	Get(ctx context.Context, userID, id string) (*dto.SessionSnapshot, error)
	Close(ctx context.Context, userID, id string) error
	AddFiles(ctx context.Context, userID, id string, files []service.FileInput) (dto.SelectionResult, error)
	RemoveFile(ctx context.Context, userID, id string, index int) error
	ClearFiles(ctx context.Context, userID, id string) error
	Confirm(ctx context.Context, userID, id string) (*dto.SessionSnapshot, error)
	Process(ctx context.Context, userID, id string) (*dto.SessionSnapshot, error)
	SetReminder(ctx context.Context, userID, id, docID string, req dto.SetReminderRequest) (*models.ExtractedDocument, error)
	ApplyAuto(ctx context.Context, userID, id string) ([]models.ExtractedDocument, error)
	Promote(ctx context.Context, userID, id, docID string) (*models.Document, error)
	ListDocuments(ctx context.Context, userID, id string, filters dto.ListDocumentsQuery) ([]models.Document, error)
	UpdateDocument(ctx context.Context, userID, id, docID string, req dto.UpdateDocumentRequest) (*models.Document, error)
	DeleteDocument(ctx context.Context, userID, id, docID string) error
	ResetError(ctx context.Context, userID, id string) error
}

// SessionHandler exposes upload sessions: file selection, confirmation and the
// processing pipeline.
type SessionHandler struct {
	service     sessionService
	maxFileSize int64
	maxFiles    int
}

// NewSessionHandler constructs the handler. Multipart bodies are capped at maxFiles
// files of maxFileSize each.
func NewSessionHandler(service sessionService, maxFileSize int64, maxFiles int) *SessionHandler {
	return &SessionHandler{service: service, maxFileSize: maxFileSize, maxFiles: maxFiles}
}

// Create godoc
// @Summary Open an upload session
// @Tags Sessions
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	snap, err := h.service.Create(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, snap)
}

// Get godoc
// @Summary Get session state
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	snap, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, nil)
}

// Close godoc
// @Summary Close a session and cancel pending work
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Close(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.Close(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddFiles godoc
// @Summary Add files to the selection
// @Tags Sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param files formData file true "Files"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/files [post]
func (h *SessionHandler) AddFiles(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	limitMultipartBody(c, h.maxFileSize, h.maxFiles)
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, multipartError(err, "files are required"))
		return
	}
	if len(form.File["files"]) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "files are required"))
		return
	}
	headers := form.File["files"]
	inputs := make([]service.FileInput, 0, len(headers))
	for _, fh := range headers {
		input, err := readFileInput(fh, h.maxFileSize)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
			return
		}
		inputs = append(inputs, input)
	}
	result, err := h.service.AddFiles(c.Request.Context(), userID, c.Param("id"), inputs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RemoveFile godoc
// @Summary Remove one file from the selection
// @Tags Sessions
// @Param id path string true "Session ID"
// @Param index path int true "Selection index"
// @Success 204
// @Router /sessions/{id}/files/{index} [delete]
func (h *SessionHandler) RemoveFile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "index must be a number"))
		return
	}
	if err := h.service.RemoveFile(c.Request.Context(), userID, c.Param("id"), index); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearFiles godoc
// @Summary Clear the selection
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id}/files [delete]
func (h *SessionHandler) ClearFiles(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.ClearFiles(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Confirm godoc
// @Summary Upload the selection and start processing
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} response.Envelope
// @Router /sessions/{id}/confirm [post]
func (h *SessionHandler) Confirm(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	snap, err := h.service.Confirm(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, snap, nil)
}

// Process godoc
// @Summary Start or retry processing of the uploaded batch
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} response.Envelope
// @Router /sessions/{id}/process [post]
func (h *SessionHandler) Process(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	snap, err := h.service.Process(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, snap, nil)
}

// SetReminder godoc
// @Summary Choose the reminder of an extracted document
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param docId path string true "Extracted document ID"
// @Param payload body dto.SetReminderRequest true "Reminder option"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/extracted/{docId}/reminder [put]
func (h *SessionHandler) SetReminder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.SetReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reminder payload"))
		return
	}
	doc, err := h.service.SetReminder(c.Request.Context(), userID, c.Param("id"), c.Param("docId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// ApplyAuto godoc
// @Summary Apply automatic reminders to every extracted document
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/reminders/auto [post]
func (h *SessionHandler) ApplyAuto(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	docs, err := h.service.ApplyAuto(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Promote godoc
// @Summary Save an extracted document
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param docId path string true "Extracted document ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/extracted/{docId}/promote [post]
func (h *SessionHandler) Promote(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	doc, err := h.service.Promote(c.Request.Context(), userID, c.Param("id"), c.Param("docId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// ListDocuments godoc
// @Summary Refresh the session's document collection
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param type query string false "Document type"
// @Param status query string false "Document status"
// @Param search query string false "Title search"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/documents [get]
func (h *SessionHandler) ListDocuments(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var filters dto.ListDocumentsQuery
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	docs, err := h.service.ListDocuments(c.Request.Context(), userID, c.Param("id"), filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// UpdateDocument godoc
// @Summary Update a document of the session's collection
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param docId path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/documents/{docId} [put]
func (h *SessionHandler) UpdateDocument(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	doc, err := h.service.UpdateDocument(c.Request.Context(), userID, c.Param("id"), c.Param("docId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// DeleteDocument godoc
// @Summary Delete a document of the session's collection
// @Tags Sessions
// @Param id path string true "Session ID"
// @Param docId path string true "Document ID"
// @Success 204
// @Router /sessions/{id}/documents/{docId} [delete]
func (h *SessionHandler) DeleteDocument(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.DeleteDocument(c.Request.Context(), userID, c.Param("id"), c.Param("docId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ResetError godoc
// @Summary Dismiss the session's last error
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id}/error [delete]
func (h *SessionHandler) ResetError(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.service.ResetError(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
