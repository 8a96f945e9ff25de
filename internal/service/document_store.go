package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

// Toast texts of document store operations.
const (
	toastUploadSucceeded = "Document uploaded successfully"
	toastUploadFailed    = "Failed to upload document"
	toastDeleteSucceeded = "Document deleted successfully"
	toastDeleteFailed    = "Failed to delete document"
	toastUpdateSucceeded = "Document updated successfully"
	toastUpdateFailed    = "Failed to update document"
	toastFetchSucceeded  = "Documents loaded"
	toastFetchFailed     = "Failed to fetch documents"
)

type documentBackend interface {
	List(ctx context.Context, userID string, query dto.ListDocumentsQuery) ([]models.Document, *models.Pagination, error)
	Upload(ctx context.Context, userID string, file FileInput, req dto.UploadDocumentRequest, onProgress ProgressFunc) (*models.Document, error)
	Update(ctx context.Context, userID, id string, req dto.UpdateDocumentRequest) (*models.Document, error)
	Delete(ctx context.Context, userID, id string) error
}

// DocumentStoreState is a consistent copy of a store's observable state.
type DocumentStoreState struct {
	Documents  []models.Document
	Progress   map[string]int
	Processing bool
	LastError  string
}

// DocumentStore is the per-session document collection. Every operation marks the store
// busy for its duration, merges the backend response on success, keeps the previous
// collection on failure and emits exactly one toast.
type DocumentStore struct {
	backend      documentBackend
	userID       string
	toaster      Toaster
	progressTick time.Duration
	progressStep int

	mu        sync.Mutex
	documents []models.Document
	progress  map[string]int
	inFlight  int
	lastErr   string
	filters   dto.ListDocumentsQuery
}

// DocumentStoreOptions tunes the synthetic upload progress.
type DocumentStoreOptions struct {
	ProgressTick time.Duration
	ProgressStep int
}

// NewDocumentStore builds an empty store for userID.
func NewDocumentStore(backend documentBackend, userID string, toaster Toaster, opts DocumentStoreOptions) *DocumentStore {
	if toaster == nil {
		toaster = MultiToaster{}
	}
	if opts.ProgressStep <= 0 {
		opts.ProgressStep = 10
	}
	return &DocumentStore{
		backend:      backend,
		userID:       userID,
		toaster:      toaster,
		progressTick: opts.ProgressTick,
		progressStep: opts.ProgressStep,
		progress:     make(map[string]int),
	}
}

// SetFilters merges list filters used by Fetch.
func (s *DocumentStore) SetFilters(filters dto.ListDocumentsQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filters.Type != "" {
		s.filters.Type = filters.Type
	}
	if filters.Status != "" {
		s.filters.Status = filters.Status
	}
	if filters.Search != "" {
		s.filters.Search = filters.Search
	}
}

// ResetError clears the last recorded error.
func (s *DocumentStore) ResetError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// Fetch replaces the collection with the backend listing.
func (s *DocumentStore) Fetch(ctx context.Context) error {
	s.begin()
	s.mu.Lock()
	filters := s.filters
	s.mu.Unlock()

	docs, _, err := s.backend.List(ctx, s.userID, filters)
	if err != nil {
		s.fail(ctx, err, toastFetchFailed)
		return err
	}
	s.mu.Lock()
	s.documents = append([]models.Document(nil), docs...)
	s.mu.Unlock()
	s.succeed(ctx, models.ToastInfo, toastFetchSucceeded)
	return nil
}

// Create uploads one file. Progress for fileID advances on a fixed tick before the transfer
// and is then overwritten by the transfer's own progress.
func (s *DocumentStore) Create(ctx context.Context, fileID string, file FileInput) (*models.Document, error) {
	s.begin()

	if err := s.simulateProgress(ctx, fileID); err != nil {
		s.dropProgress(fileID)
		s.fail(ctx, err, toastUploadFailed)
		return nil, err
	}
	doc, err := s.backend.Upload(ctx, s.userID, file, dto.UploadDocumentRequest{}, func(p int) {
		s.setProgress(fileID, p)
	})
	if err != nil {
		s.dropProgress(fileID)
		s.fail(ctx, err, toastUploadFailed)
		return nil, err
	}

	s.mu.Lock()
	s.documents = append([]models.Document{*doc}, s.documents...)
	s.progress[fileID] = 100
	s.mu.Unlock()
	s.succeed(ctx, models.ToastSuccess, toastUploadSucceeded)
	return doc, nil
}

// Update sends a partial update and merges the response into the collection.
func (s *DocumentStore) Update(ctx context.Context, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	s.begin()
	doc, err := s.backend.Update(ctx, s.userID, id, req)
	if err != nil {
		s.fail(ctx, err, toastUpdateFailed)
		return nil, err
	}
	s.mu.Lock()
	for i := range s.documents {
		if s.documents[i].ID == id {
			s.documents[i] = *doc
		}
	}
	s.mu.Unlock()
	s.succeed(ctx, models.ToastSuccess, toastUpdateSucceeded)
	return doc, nil
}

// Delete removes a document remotely and from the collection.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.begin()
	if err := s.backend.Delete(ctx, s.userID, id); err != nil {
		s.fail(ctx, err, toastDeleteFailed)
		return err
	}
	s.mu.Lock()
	kept := s.documents[:0:0]
	for _, doc := range s.documents {
		if doc.ID != id {
			kept = append(kept, doc)
		}
	}
	s.documents = kept
	s.mu.Unlock()
	s.succeed(ctx, models.ToastSuccess, toastDeleteSucceeded)
	return nil
}

// IsProcessing reports whether any operation is in flight.
func (s *DocumentStore) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// State returns a copy of the store's observable state.
func (s *DocumentStore) State() DocumentStoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]models.Document, len(s.documents))
	copy(docs, s.documents)
	progress := make(map[string]int, len(s.progress))
	for k, v := range s.progress {
		progress[k] = v
	}
	return DocumentStoreState{Documents: docs, Progress: progress, Processing: s.inFlight > 0, LastError: s.lastErr}
}

func (s *DocumentStore) begin() {
	s.mu.Lock()
	s.inFlight++
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *DocumentStore) succeed(ctx context.Context, kind models.ToastKind, message string) {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	s.toaster.Toast(ctx, kind, message)
}

func (s *DocumentStore) fail(ctx context.Context, err error, fallback string) {
	message := appErrors.MessageOf(err, fallback)
	s.mu.Lock()
	s.inFlight--
	s.lastErr = message
	s.mu.Unlock()
	s.toaster.Toast(ctx, models.ToastError, message)
}

func (s *DocumentStore) simulateProgress(ctx context.Context, fileID string) error {
	s.setProgress(fileID, 0)
	if s.progressTick <= 0 {
		return nil
	}
	ticker := time.NewTicker(s.progressTick)
	defer ticker.Stop()
	for pct := s.progressStep; pct <= 100; pct += s.progressStep {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.setProgress(fileID, pct)
		}
	}
	return nil
}

func (s *DocumentStore) setProgress(fileID string, pct int) {
	s.mu.Lock()
	s.progress[fileID] = pct
	s.mu.Unlock()
}

func (s *DocumentStore) dropProgress(fileID string) {
	s.mu.Lock()
	delete(s.progress, fileID)
	s.mu.Unlock()
}

// upsert replaces the stored copy of doc, or prepends it when absent.
func (s *DocumentStore) upsert(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.documents {
		if s.documents[i].ID == doc.ID {
			s.documents[i] = doc
			return
		}
	}
	s.documents = append([]models.Document{doc}, s.documents...)
}
