package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/service"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type sessionServiceMock struct {
	files       []service.FileInput
	removed     int
	reminderReq dto.SetReminderRequest
	filters     dto.ListDocumentsQuery
	deletedDoc  string
	errorReset  bool
	err         error
}

func (m *sessionServiceMock) snapshot() *dto.SessionSnapshot {
	return &dto.SessionSnapshot{ID: "sess-1", BatchState: models.BatchIdle}
}

func (m *sessionServiceMock) Create(context.Context, string) (*dto.SessionSnapshot, error) {
	return m.snapshot(), m.err
}

func (m *sessionServiceMock) Get(context.Context, string, string) (*dto.SessionSnapshot, error) {
	return m.snapshot(), m.err
}

func (m *sessionServiceMock) Close(context.Context, string, string) error { return m.err }

func (m *sessionServiceMock) AddFiles(_ context.Context, _, _ string, files []service.FileInput) (dto.SelectionResult, error) {
	m.files = files
	return dto.SelectionResult{Total: len(files)}, m.err
}

func (m *sessionServiceMock) RemoveFile(_ context.Context, _, _ string, index int) error {
	m.removed = index
	return m.err
}

func (m *sessionServiceMock) ClearFiles(context.Context, string, string) error { return m.err }

func (m *sessionServiceMock) Confirm(context.Context, string, string) (*dto.SessionSnapshot, error) {
	return m.snapshot(), m.err
}

func (m *sessionServiceMock) Process(context.Context, string, string) (*dto.SessionSnapshot, error) {
	return m.snapshot(), m.err
}

func (m *sessionServiceMock) SetReminder(_ context.Context, _, _, docID string, req dto.SetReminderRequest) (*models.ExtractedDocument, error) {
	m.reminderReq = req
	return &models.ExtractedDocument{ID: docID, ReminderType: req.ReminderType}, m.err
}

func (m *sessionServiceMock) ApplyAuto(context.Context, string, string) ([]models.ExtractedDocument, error) {
	return nil, m.err
}

func (m *sessionServiceMock) Promote(context.Context, string, string, string) (*models.Document, error) {
	return &models.Document{ID: "doc-1", Status: models.DocumentStatusCompleted}, m.err
}

func (m *sessionServiceMock) ListDocuments(_ context.Context, _, _ string, filters dto.ListDocumentsQuery) ([]models.Document, error) {
	m.filters = filters
	return []models.Document{{ID: "doc-1", Type: models.DocumentTypeKTP}}, m.err
}

func (m *sessionServiceMock) UpdateDocument(_ context.Context, _, _, docID string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	return &models.Document{ID: docID, Title: *req.Title}, m.err
}

func (m *sessionServiceMock) DeleteDocument(_ context.Context, _, _, docID string) error {
	m.deletedDoc = docID
	return m.err
}

func (m *sessionServiceMock) ResetError(context.Context, string, string) error {
	m.errorReset = true
	return m.err
}

func TestSessionHandlerCreate(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{}, 10<<20, 5)
	c, w := newGinContext(http.MethodPost, "/sessions", nil)
	withUser(c, "user-1")
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestSessionHandlerAddFilesReadsEveryPart(t *testing.T) {
	svc := &sessionServiceMock{}
	handler := NewSessionHandler(svc, 10<<20, 5)

	c, w := newMultipartContext(t, "/sessions/sess-1/files", nil,
		multipartFile{field: "files", name: "ktp.jpg", mimeType: "image/jpeg", content: []byte("a")},
		multipartFile{field: "files", name: "sim.png", mimeType: "image/png", content: []byte("b")})
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	withUser(c, "user-1")
	handler.AddFiles(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.files, 2)
	assert.Equal(t, "ktp.jpg", svc.files[0].Name)
	assert.Equal(t, "image/png", svc.files[1].MimeType)
}

func TestSessionHandlerAddFilesPropagatesLimit(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{err: appErrors.ErrTooManyFiles}, 10<<20, 5)
	c, w := newMultipartContext(t, "/sessions/sess-1/files", nil,
		multipartFile{field: "files", name: "ktp.jpg", mimeType: "image/jpeg", content: []byte("a")})
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	withUser(c, "user-1")
	handler.AddFiles(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrTooManyFiles.Code, decodeEnvelope(t, w).Error.Code)
}

func TestSessionHandlerRemoveFileParsesIndex(t *testing.T) {
	svc := &sessionServiceMock{}
	handler := NewSessionHandler(svc, 10<<20, 5)

	c, w := newGinContext(http.MethodDelete, "/sessions/sess-1/files/2", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "index", Value: "2"}}
	withUser(c, "user-1")
	handler.RemoveFile(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 2, svc.removed)

	c, w = newGinContext(http.MethodDelete, "/sessions/sess-1/files/x", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "index", Value: "x"}}
	withUser(c, "user-1")
	handler.RemoveFile(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerConfirmEmptySelection(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{err: appErrors.ErrEmptySelection}, 10<<20, 5)
	c, w := newGinContext(http.MethodPost, "/sessions/sess-1/confirm", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	withUser(c, "user-1")
	handler.Confirm(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandlerSetReminder(t *testing.T) {
	svc := &sessionServiceMock{}
	handler := NewSessionHandler(svc, 10<<20, 5)

	body, _ := json.Marshal(map[string]string{"reminderType": "7d"})
	c, w := newGinContext(http.MethodPut, "/sessions/sess-1/extracted/ext-1/reminder", body)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "docId", Value: "ext-1"}}
	withUser(c, "user-1")
	handler.SetReminder(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Reminder7Days, svc.reminderReq.ReminderType)
}

func TestSessionHandlerPromoteConflict(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{err: appErrors.ErrConflict}, 10<<20, 5)
	c, w := newGinContext(http.MethodPost, "/sessions/sess-1/extracted/ext-1/promote", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "docId", Value: "ext-1"}}
	withUser(c, "user-1")
	handler.Promote(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSessionHandlerClosedSession(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{err: appErrors.ErrSessionClosed}, 10<<20, 5)
	c, w := newGinContext(http.MethodGet, "/sessions/sess-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	withUser(c, "user-1")
	handler.Get(c)
	require.Equal(t, http.StatusGone, w.Code)
}

func TestSessionHandlerAddFilesRejectsOversizedBody(t *testing.T) {
	svc := &sessionServiceMock{}
	handler := NewSessionHandler(svc, 16, 2)

	c, w := newMultipartContext(t, "/sessions/sess-1/files", nil,
		multipartFile{field: "files", name: "scan.pdf", mimeType: "application/pdf", content: bytes.Repeat([]byte{'x'}, 2*multipartOverhead)})
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	withUser(c, "user-1")
	handler.AddFiles(c)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, decodeEnvelope(t, w).Error.Code)
	assert.Nil(t, svc.files)
}

func TestSessionHandlerListDocumentsBindsFilters(t *testing.T) {
	svc := &sessionServiceMock{}
	handler := NewSessionHandler(svc, 10<<20, 5)

	c, w := newGinContext(http.MethodGet, "/sessions/sess-1/documents?type=KTP&search=saya", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	withUser(c, "user-1")
	handler.ListDocuments(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "KTP", svc.filters.Type)
	assert.Equal(t, "saya", svc.filters.Search)
}

func TestSessionHandlerUpdateDocument(t *testing.T) {
	handler := NewSessionHandler(&sessionServiceMock{}, 10<<20, 5)
	c, w := newGinContext(http.MethodPut, "/sessions/sess-1/documents/doc-1", []byte(`{"title":"SIM A"}`))
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "docId", Value: "doc-1"}}
	withUser(c, "user-1")
	handler.UpdateDocument(c)

	require.Equal(t, http.StatusOK, w.Code)
	data, ok := decodeEnvelope(t, w).Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "SIM A", data["title"])
}

func TestSessionHandlerDeleteDocumentAndResetError(t *testing.T) {
	svc := &sessionServiceMock{}
	handler := NewSessionHandler(svc, 10<<20, 5)

	c, w := newGinContext(http.MethodDelete, "/sessions/sess-1/documents/doc-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}, {Key: "docId", Value: "doc-9"}}
	withUser(c, "user-1")
	handler.DeleteDocument(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "doc-9", svc.deletedDoc)

	c, w = newGinContext(http.MethodDelete, "/sessions/sess-1/error", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	withUser(c, "user-1")
	handler.ResetError(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, svc.errorReset)
}
