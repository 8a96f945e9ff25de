package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/service"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type documentServiceMock struct {
	listQuery   dto.ListDocumentsQuery
	uploaded    service.FileInput
	uploadReq   dto.UploadDocumentRequest
	doc         *models.Document
	err         error
	downloadTok string
	download    *service.DocumentDownload
}

func (m *documentServiceMock) List(_ context.Context, _ string, query dto.ListDocumentsQuery) ([]models.Document, *models.Pagination, error) {
	m.listQuery = query
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.Document{*m.doc}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *documentServiceMock) Get(context.Context, string, string) (*models.Document, error) {
	return m.doc, m.err
}

func (m *documentServiceMock) Upload(_ context.Context, _ string, file service.FileInput, req dto.UploadDocumentRequest, _ service.ProgressFunc) (*models.Document, error) {
	m.uploaded = file
	m.uploadReq = req
	return m.doc, m.err
}

func (m *documentServiceMock) Update(context.Context, string, string, dto.UpdateDocumentRequest) (*models.Document, error) {
	return m.doc, m.err
}

func (m *documentServiceMock) Delete(context.Context, string, string) error {
	return m.err
}

func (m *documentServiceMock) Extract(context.Context, string, string) (*models.ExtractionResult, error) {
	return &models.ExtractionResult{DocumentID: m.doc.ID, Confidence: 0.9}, m.err
}

func (m *documentServiceMock) DownloadURL(context.Context, string, string) (string, time.Time, error) {
	return "/api/v1/documents/doc-1/download?token=t", time.Now().Add(time.Minute), m.err
}

func (m *documentServiceMock) Download(_ context.Context, _ string, token string) (*service.DocumentDownload, error) {
	m.downloadTok = token
	return m.download, m.err
}

func sampleDocument() *models.Document {
	return &models.Document{ID: "doc-1", UserID: "user-1", Title: "KTP", Type: models.DocumentTypeKTP, Status: models.DocumentStatusUploaded}
}

func TestDocumentHandlerListBindsQuery(t *testing.T) {
	svc := &documentServiceMock{doc: sampleDocument()}
	handler := NewDocumentHandler(svc, 10<<20)

	c, w := newGinContext(http.MethodGet, "/documents?page=2&per_page=5&type=KTP&sort_by=title&sort_order=asc", nil)
	withUser(c, "user-1")
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.listQuery.Page)
	assert.Equal(t, 5, svc.listQuery.PerPage)
	assert.Equal(t, "KTP", svc.listQuery.Type)
	assert.Equal(t, "title", svc.listQuery.SortBy)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestDocumentHandlerRequiresUser(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{doc: sampleDocument()}, 10<<20)
	c, w := newGinContext(http.MethodGet, "/documents", nil)
	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentHandlerUpload(t *testing.T) {
	svc := &documentServiceMock{doc: sampleDocument()}
	handler := NewDocumentHandler(svc, 10<<20)

	c, w := newMultipartContext(t, "/documents/upload", map[string]string{"title": " KTP Saya "},
		multipartFile{field: "file", name: "ktp.jpg", mimeType: "image/jpeg", content: []byte("jpeg-bytes")})
	withUser(c, "user-1")
	handler.Upload(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ktp.jpg", svc.uploaded.Name)
	assert.Equal(t, "image/jpeg", svc.uploaded.MimeType)
	assert.Equal(t, []byte("jpeg-bytes"), svc.uploaded.Content)
	assert.Equal(t, "KTP Saya", svc.uploadReq.Title)
}

func TestDocumentHandlerUploadSkipsReadingOversizedFile(t *testing.T) {
	svc := &documentServiceMock{doc: sampleDocument(), err: appErrors.ErrFileTooLarge}
	handler := NewDocumentHandler(svc, 4)

	c, w := newMultipartContext(t, "/documents/upload", nil,
		multipartFile{field: "file", name: "big.pdf", mimeType: "application/pdf", content: []byte("0123456789")})
	withUser(c, "user-1")
	handler.Upload(c)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, int64(10), svc.uploaded.Size)
	assert.Nil(t, svc.uploaded.Content)
}

func TestDocumentHandlerUploadCapsRequestBody(t *testing.T) {
	svc := &documentServiceMock{doc: sampleDocument()}
	handler := NewDocumentHandler(svc, 16)

	c, w := newMultipartContext(t, "/documents/upload", nil,
		multipartFile{field: "file", name: "big.pdf", mimeType: "application/pdf", content: bytes.Repeat([]byte{'x'}, 2*multipartOverhead)})
	withUser(c, "user-1")
	handler.Upload(c)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, decodeEnvelope(t, w).Error.Code)
	assert.Empty(t, svc.uploaded.Name)
}

func TestDocumentHandlerUploadMissingFile(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{doc: sampleDocument()}, 10<<20)
	c, w := newMultipartContext(t, "/documents/upload", map[string]string{"title": "x"})
	withUser(c, "user-1")
	handler.Upload(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
}

func TestDocumentHandlerGetNotFound(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{err: appErrors.ErrNotFound}, 10<<20)
	c, w := newGinContext(http.MethodGet, "/documents/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	withUser(c, "user-1")
	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandlerDeleteNoContent(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{doc: sampleDocument()}, 10<<20)
	c, w := newGinContext(http.MethodDelete, "/documents/doc-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	withUser(c, "user-1")
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestDocumentHandlerDownload(t *testing.T) {
	svc := &documentServiceMock{download: &service.DocumentDownload{
		Body:             io.NopCloser(strings.NewReader("pdf-bytes")),
		DocumentDownload: dto.DocumentDownload{Filename: "stnk.pdf", MimeType: "application/pdf", SizeBytes: 9},
	}}
	handler := NewDocumentHandler(svc, 10<<20)

	c, w := newGinContext(http.MethodGet, "/documents/doc-1/download?token=signed", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "signed", svc.downloadTok)
	assert.Equal(t, "pdf-bytes", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "stnk.pdf")
}

func TestDocumentHandlerDownloadRequiresToken(t *testing.T) {
	handler := NewDocumentHandler(&documentServiceMock{}, 10<<20)
	c, w := newGinContext(http.MethodGet, "/documents/doc-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	handler.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
