package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/pkg/config"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/resilience"
	"github.com/noah-isme/dokumen-api/pkg/storage"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, userID, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, userID, id string) error
}

type downloadSigner interface {
	Generate(documentID, key string) (string, time.Time, error)
	Parse(token string) (storage.Grant, error)
}

// ProgressFunc receives transfer progress as a percentage.
type ProgressFunc func(percent int)

// DocumentDownload bundles an opened document binary for streaming.
type DocumentDownload struct {
	Body io.ReadCloser
	dto.DocumentDownload
}

// DocumentServiceConfig holds upload rules and link generation settings.
type DocumentServiceConfig struct {
	Rules     UploadRules
	APIPrefix string
}

// DocumentService implements the remote document API over the repository and object store.
type DocumentService struct {
	repo       documentRepository
	objects    storage.ObjectStore
	signer     downloadSigner
	classifier DocumentClassifier
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        DocumentServiceConfig
	now        func() time.Time
}

// NewDocumentService constructs the document service.
func NewDocumentService(repo documentRepository, objects storage.ObjectStore, signer downloadSigner, classifier DocumentClassifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Rules.MaxFiles == 0 {
		cfg.Rules = NewUploadRules(config.UploadConfig{})
	}
	return &DocumentService{
		repo:       repo,
		objects:    objects,
		signer:     signer,
		classifier: classifier,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// List returns a page of the user's documents.
func (s *DocumentService) List(ctx context.Context, userID string, query dto.ListDocumentsQuery) ([]models.Document, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document query")
	}
	filter := models.DocumentFilter{
		UserID:    userID,
		Status:    models.DocumentStatus(query.Status),
		Search:    strings.TrimSpace(query.Search),
		Page:      query.Page,
		PageSize:  query.PerPage,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.Type != "" {
		docType, ok := models.ParseDocumentType(query.Type)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid document type")
		}
		filter.Type = docType
	}
	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	for i := range docs {
		s.decorate(&docs[i])
	}
	page, size := query.Page, query.PerPage
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return docs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one document of the user.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	doc, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.decorate(doc)
	return doc, nil
}

// Upload stores the binary and creates the document in uploaded state.
func (s *DocumentService) Upload(ctx context.Context, userID string, file FileInput, req dto.UploadDocumentRequest, onProgress ProgressFunc) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if len(file.Content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if file.Size <= 0 {
		file.Size = int64(len(file.Content))
	}
	if reason, err := s.cfg.Rules.ValidateFile(file); err != nil {
		return nil, appErrors.Clone(appErrors.FromError(err), reason)
	}
	mimeType := file.DetectedMIME()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(file.Name), filepath.Ext(file.Name))
	}
	if title == "" {
		title = "Dokumen"
	}

	id := uuid.NewString()
	key := objectKey(userID, id, file.Name, mimeType)
	reader := newProgressReader(bytes.NewReader(file.Content), int64(len(file.Content)), onProgress)
	if _, err := s.objects.Put(ctx, key, mimeType, reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document file")
	}

	doc := &models.Document{
		ID:       id,
		UserID:   userID,
		Title:    title,
		Type:     models.DocumentTypeOther,
		Status:   models.DocumentStatusUploaded,
		FilePath: key,
		FileSize: file.Size,
		MimeType: mimeType,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned document file", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.decorate(doc)
	return doc, nil
}

// Update applies a partial update. Status moves forward one step at a time.
func (s *DocumentService) Update(ctx context.Context, userID, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	doc, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		doc.Title = strings.TrimSpace(*req.Title)
	}
	if req.Type != nil {
		docType, ok := models.ParseDocumentType(*req.Type)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid document type")
		}
		doc.Type = docType
	}
	if req.Status != nil {
		if !models.CanTransition(doc.Status, *req.Status) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move document from %s to %s", doc.Status, *req.Status))
		}
		doc.Status = *req.Status
	}
	if req.ExpiryDate != nil {
		expiry := *req.ExpiryDate
		doc.ExpiryDate = &expiry
	}
	if err := s.applyReminder(doc, req.ReminderType, req.ReminderDate); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, err.Error())
	}

	if err := s.repo.Update(ctx, doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	s.decorate(doc)
	return doc, nil
}

func (s *DocumentService) applyReminder(doc *models.Document, reminderType *models.ReminderType, reminderDate *time.Time) error {
	if reminderType == nil {
		if reminderDate != nil {
			custom := models.ReminderCustom
			reminderType = &custom
		} else {
			return nil
		}
	}
	option := *reminderType
	doc.ReminderType = &option
	doc.ReminderSentAt = nil
	if doc.ExpiryDate == nil && option != models.ReminderCustom {
		return appErrors.Clone(appErrors.ErrValidation, "dokumen tidak memiliki tanggal kadaluarsa")
	}
	var expiry time.Time
	if doc.ExpiryDate != nil {
		expiry = *doc.ExpiryDate
	}
	date, err := ComputeReminderDate(expiry, option, doc.Type, reminderDate, s.now())
	if err != nil {
		return err
	}
	doc.ReminderDate = date
	return nil
}

// Delete removes the document and its stored binary.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	doc, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.objects.Delete(ctx, doc.FilePath); err != nil {
		s.logger.Warn("failed to delete document file", zap.String("document_id", id), zap.Error(err))
	}
	return nil
}

// Extract classifies a document. Completed documents return their stored data unchanged;
// a failed classification leaves the document processing so it can be retried.
func (s *DocumentService) Extract(ctx context.Context, userID, id string) (*models.ExtractionResult, error) {
	started := s.now()
	doc, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	result := &models.ExtractionResult{JobID: uuid.NewString(), DocumentID: doc.ID}

	if doc.Status == models.DocumentStatusCompleted || doc.Status == models.DocumentStatusExpired {
		result.ExtractedData = doc.ExtractedData
		if doc.Confidence != nil {
			result.Confidence = *doc.Confidence
		}
		return result, nil
	}
	if s.classifier == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "classifier unavailable")
	}

	if doc.Status == models.DocumentStatusUploaded {
		doc.Status = models.DocumentStatusProcessing
		if err := s.repo.Update(ctx, doc); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark document processing")
		}
	}

	content, err := s.readObject(ctx, doc.FilePath)
	if err != nil {
		return nil, err
	}
	classification, err := s.classifier.Classify(ctx, content, doc.Title, doc.MimeType)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "classifier temporarily unavailable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to classify document")
	}

	ApplyClassification(doc, classification)
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store extraction result")
	}
	s.metrics.RecordExtraction(doc.Type)

	result.ExtractedData = doc.ExtractedData
	result.Confidence = classification.Confidence
	result.ProcessingTime = s.now().Sub(started).Milliseconds()
	return result, nil
}

// ApplyClassification completes doc with a classification and the auto reminder.
func ApplyClassification(doc *models.Document, c *models.Classification) {
	doc.Type = c.Type
	doc.ExtractedData = c.Fields
	confidence := c.Confidence
	doc.Confidence = &confidence
	doc.Status = models.DocumentStatusCompleted
	auto := models.ReminderAuto
	doc.ReminderType = &auto
	doc.ReminderSentAt = nil
	if c.ExpiryDate != nil {
		expiry := *c.ExpiryDate
		doc.ExpiryDate = &expiry
		reminder := ComputeAutoReminder(doc.Type, expiry)
		doc.ReminderDate = &reminder
	}
}

// Promote persists an extracted document's outcome onto its stored document.
func (s *DocumentService) Promote(ctx context.Context, userID string, extracted models.ExtractedDocument) (*models.Document, error) {
	if extracted.DocumentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "extracted document has no stored document")
	}
	doc, err := s.load(ctx, userID, extracted.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.DocumentStatusExpired {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document already expired")
	}
	doc.Type = extracted.DocumentType
	doc.ExtractedData = extracted.ExtractedData
	confidence := extracted.Confidence
	doc.Confidence = &confidence
	doc.Status = models.DocumentStatusCompleted
	doc.ExpiryDate = extracted.ExpiryDate
	reminderType := extracted.ReminderType
	doc.ReminderType = &reminderType
	doc.ReminderDate = extracted.ReminderDate
	doc.ReminderSentAt = nil
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote extracted document")
	}
	s.decorate(doc)
	return doc, nil
}

// DownloadURL generates a signed link for the document binary.
func (s *DocumentService) DownloadURL(ctx context.Context, userID, id string) (string, time.Time, error) {
	doc, err := s.load(ctx, userID, id)
	if err != nil {
		return "", time.Time{}, err
	}
	url, expiresAt, err := s.signedURL(doc)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	return url, expiresAt, nil
}

// Download validates the signed token and opens the binary. No session is required.
func (s *DocumentService) Download(ctx context.Context, id, token string) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	grant, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if grant.DocumentID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	body, err := s.objects.Open(ctx, grant.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	return &DocumentDownload{
		Body: body,
		DocumentDownload: dto.DocumentDownload{
			Filename:  filepath.Base(grant.Key),
			MimeType:  mimeFromKey(grant.Key),
			ExpiresAt: grant.ExpiresAt,
		},
	}, nil
}

func (s *DocumentService) load(ctx context.Context, userID, id string) (*models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	doc, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) readObject(ctx context.Context, key string) ([]byte, error) {
	body, err := s.objects.Open(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	defer body.Close()
	content, err := io.ReadAll(io.LimitReader(body, s.cfg.Rules.MaxFileSize+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document file")
	}
	return content, nil
}

func (s *DocumentService) decorate(doc *models.Document) {
	doc.RemainingTime = FormatRemainingTime(doc.ExpiryDate, s.now())
	if s.signer == nil || doc.FilePath == "" {
		return
	}
	url, _, err := s.signedURL(doc)
	if err != nil {
		s.logger.Warn("failed to sign document url", zap.String("document_id", doc.ID), zap.Error(err))
		return
	}
	doc.URL = url
	if strings.HasPrefix(doc.MimeType, "image/") {
		doc.ThumbnailURL = url
	}
}

func (s *DocumentService) signedURL(doc *models.Document) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, errors.New("download signer unavailable")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return "", time.Time{}, err
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, token), expiresAt, nil
}

func objectKey(userID, documentID, name, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	return fmt.Sprintf("%s/%s%s", sanitize(userID), documentID, ext)
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "anonymous"
	}
	return out
}

func mimeExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

func mimeFromKey(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     int
	progress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, progress ProgressFunc) io.Reader {
	if progress == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, last: -1, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if pct := int(p.read * 100 / p.total); pct != p.last {
		p.last = pct
		p.progress(pct)
	}
	return n, err
}
