package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type stubDocumentBackend struct {
	docs    []models.Document
	listErr error
	err     error
	gate    chan struct{}
}

func (b *stubDocumentBackend) List(context.Context, string, dto.ListDocumentsQuery) ([]models.Document, *models.Pagination, error) {
	if b.listErr != nil {
		return nil, nil, b.listErr
	}
	return b.docs, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(b.docs)}, nil
}

func (b *stubDocumentBackend) Upload(_ context.Context, userID string, file FileInput, _ dto.UploadDocumentRequest, onProgress ProgressFunc) (*models.Document, error) {
	if b.gate != nil {
		<-b.gate
	}
	if b.err != nil {
		return nil, b.err
	}
	onProgress(50)
	onProgress(100)
	return &models.Document{ID: "doc-" + file.Name, UserID: userID, Title: file.Name, Status: models.DocumentStatusUploaded}, nil
}

func (b *stubDocumentBackend) Update(_ context.Context, _ string, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &models.Document{ID: id, Title: *req.Title}, nil
}

func (b *stubDocumentBackend) Delete(context.Context, string, string) error {
	return b.err
}

func TestDocumentStoreFetchFailureKeepsCollection(t *testing.T) {
	backend := &stubDocumentBackend{docs: []models.Document{{ID: "a"}, {ID: "b"}}}
	toasts := NewToastRecorder()
	store := NewDocumentStore(backend, "user-1", toasts, DocumentStoreOptions{})
	ctx := context.Background()

	require.NoError(t, store.Fetch(ctx))
	require.Len(t, store.State().Documents, 2)

	backend.listErr = errors.New("")
	require.Error(t, store.Fetch(ctx))

	state := store.State()
	assert.Len(t, state.Documents, 2)
	assert.Equal(t, "Failed to fetch documents", state.LastError)
	assert.False(t, state.Processing)

	got := toasts.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, models.ToastInfo, got[0].Kind)
	assert.Equal(t, models.ToastError, got[1].Kind)
}

func TestDocumentStoreCreateTracksProgress(t *testing.T) {
	backend := &stubDocumentBackend{}
	toasts := NewToastRecorder()
	store := NewDocumentStore(backend, "user-1", toasts, DocumentStoreOptions{ProgressTick: time.Millisecond, ProgressStep: 25})
	ctx := context.Background()

	backend.docs = []models.Document{{ID: "old"}}
	require.NoError(t, store.Fetch(ctx))

	doc, err := store.Create(ctx, "file-1", jpegInput("ktp.jpg", 10))
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusUploaded, doc.Status)

	state := store.State()
	require.Len(t, state.Documents, 2)
	assert.Equal(t, doc.ID, state.Documents[0].ID)
	assert.Equal(t, 100, state.Progress["file-1"])
	assert.Equal(t, "Document uploaded successfully", toasts.Snapshot()[1].Message)
}

func TestDocumentStoreCreateFailure(t *testing.T) {
	backend := &stubDocumentBackend{err: appErrors.Clone(appErrors.ErrFileTooLarge, "big.jpg (melebihi 5MB)")}
	toasts := NewToastRecorder()
	store := NewDocumentStore(backend, "user-1", toasts, DocumentStoreOptions{})

	_, err := store.Create(context.Background(), "file-1", jpegInput("big.jpg", 10))
	require.Error(t, err)

	state := store.State()
	assert.Empty(t, state.Documents)
	assert.NotContains(t, state.Progress, "file-1")
	assert.Equal(t, "big.jpg (melebihi 5MB)", state.LastError)
	require.Len(t, toasts.Snapshot(), 1)
}

func TestDocumentStoreIsProcessingWhileInFlight(t *testing.T) {
	backend := &stubDocumentBackend{gate: make(chan struct{})}
	store := NewDocumentStore(backend, "user-1", nil, DocumentStoreOptions{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Create(context.Background(), "file-1", jpegInput("a.jpg", 10))
	}()

	require.Eventually(t, store.IsProcessing, time.Second, time.Millisecond)
	close(backend.gate)
	<-done
	assert.False(t, store.IsProcessing())
}

func TestDocumentStoreUpdateAndDelete(t *testing.T) {
	backend := &stubDocumentBackend{docs: []models.Document{{ID: "a", Title: "old"}, {ID: "b"}}}
	toasts := NewToastRecorder()
	store := NewDocumentStore(backend, "user-1", toasts, DocumentStoreOptions{})
	ctx := context.Background()
	require.NoError(t, store.Fetch(ctx))

	title := "new"
	_, err := store.Update(ctx, "a", dto.UpdateDocumentRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new", store.State().Documents[0].Title)

	require.NoError(t, store.Delete(ctx, "b"))
	require.Len(t, store.State().Documents, 1)

	backend.err = errors.New("network down")
	require.Error(t, store.Delete(ctx, "a"))
	assert.Len(t, store.State().Documents, 1)
	assert.Equal(t, "network down", store.State().LastError)

	assert.Len(t, toasts.Snapshot(), 4)
}
