package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []NotificationInput
}

func (n *recordingNotifier) Add(_ context.Context, userID string, input NotificationInput) (*models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, input)
	return &models.Notification{UserID: userID, Type: input.Type, Title: input.Title, Message: input.Message}, nil
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notices))
	for i, notice := range n.notices {
		out[i] = notice.Title
	}
	return out
}

type sessionFixture struct {
	svc        *SessionService
	repo       *memoryDocumentRepo
	notifier   *recordingNotifier
	classifier *stubClassifier
}

func newSessionFixture(t *testing.T, stageDelay time.Duration) *sessionFixture {
	t.Helper()
	classifier := &stubClassifier{result: stnkClassification()}
	docs, repo := newTestDocumentService(t, classifier)
	notifier := &recordingNotifier{}
	sim := NewProcessingSimulator(classifier, stageDelay, nil, nil)
	svc := NewSessionService(docs, notifier, sim, nil, nil, nil, nil, SessionServiceConfig{TTL: time.Minute, Workers: 1})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return &sessionFixture{svc: svc, repo: repo, notifier: notifier, classifier: classifier}
}

func TestSessionServiceUploadAndProcessEndToEnd(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BatchIdle, snap.BatchState)

	result, err := f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("stnk.jpg", 2*mib)})
	require.NoError(t, err)
	require.Len(t, result.Accepted, 1)
	assert.Empty(t, f.notifier.titles())

	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	f.svc.queue.Drain()

	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Selection)
	assert.Equal(t, models.BatchCompleted, snap.BatchState)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, 100, snap.Progress[result.Accepted[0].FileID])
	require.Len(t, snap.Extracted, 1)
	extracted := snap.Extracted[0]
	assert.Equal(t, snap.Documents[0].ID, extracted.DocumentID)
	assert.Equal(t, models.DocumentTypeSTNK, extracted.DocumentType)
	assert.Equal(t, models.ReminderAuto, extracted.ReminderType)
	assert.NotEmpty(t, extracted.RemainingTime)
	require.Len(t, snap.Toasts, 1)
	assert.Equal(t, toastUploadSucceeded, snap.Toasts[0].Message)

	require.Equal(t, []string{titleUploadSucceeded}, f.notifier.titles())
	assert.Equal(t, "1 file berhasil diunggah", f.notifier.notices[0].Message)

	// stored document is untouched until promoted
	stored, err := f.repo.GetByID(ctx, "user-1", extracted.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusUploaded, stored.Status)

	updated, err := f.svc.SetReminder(ctx, "user-1", snap.ID, extracted.ID, dto.SetReminderRequest{ReminderType: models.Reminder7Days})
	require.NoError(t, err)
	assert.Equal(t, date(2027, 1, 3), *updated.ReminderDate)

	doc, err := f.svc.Promote(ctx, "user-1", snap.ID, extracted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusCompleted, doc.Status)
	assert.Equal(t, models.Reminder7Days, *doc.ReminderType)

	_, err = f.svc.Promote(ctx, "user-1", snap.ID, extracted.ID)
	require.ErrorIs(t, err, appErrors.ErrConflict)

	// a completed batch is not processed twice
	_, err = f.svc.Process(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	f.svc.queue.Drain()
	assert.Equal(t, 1, f.classifier.calls)
}

func TestSessionServiceRejectsOverflowingSelection(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)

	files := make([]FileInput, 6)
	for i := range files {
		files[i] = jpegInput("scan.jpg", 10)
	}
	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, files)
	require.ErrorIs(t, err, appErrors.ErrTooManyFiles)
	assert.Equal(t, []string{titleTooManyFiles}, f.notifier.titles())

	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Selection)
}

func TestSessionServiceConfirmEmptySelection(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.ErrorIs(t, err, appErrors.ErrEmptySelection)
	assert.Equal(t, []string{titleEmptySelection}, f.notifier.titles())
}

func TestSessionServiceConfirmFailureDoesNotAdvance(t *testing.T) {
	f := newSessionFixture(t, 0)
	f.repo.createErr = errors.New("db down")
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("a.jpg", 10), jpegInput("b.jpg", 10)})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.Error(t, err)
	assert.Equal(t, []string{titleUploadFailed}, f.notifier.titles())
	assert.Equal(t, messageUploadFailed, f.notifier.notices[0].Message)

	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Selection, 2)
	assert.Equal(t, models.BatchIdle, snap.BatchState)
	assert.Empty(t, snap.Progress)

	_, err = f.svc.Process(ctx, "user-1", snap.ID)
	require.ErrorIs(t, err, appErrors.ErrEmptySelection)
}

func TestSessionServiceCloseCancelsProcessing(t *testing.T) {
	f := newSessionFixture(t, time.Hour)
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("a.jpg", 10)})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.NoError(t, err)

	f.svc.mu.RLock()
	batch := f.svc.sessions[snap.ID].batch
	f.svc.mu.RUnlock()
	require.Eventually(t, func() bool { return batch.State() == models.BatchProcessing }, time.Second, time.Millisecond)

	require.NoError(t, f.svc.Close(ctx, "user-1", snap.ID))
	f.svc.queue.Drain()

	assert.Equal(t, models.BatchCancelled, batch.State())
	assert.Zero(t, f.classifier.calls)
	_, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSessionServiceScopesSessionsToOwner(t *testing.T) {
	f := newSessionFixture(t, 0)
	snap, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "user-2", snap.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Create(context.Background(), "")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestSessionServiceReapsIdleSessions(t *testing.T) {
	f := newSessionFixture(t, 0)
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }

	idle, err := f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)
	f.svc.now = func() time.Time { return base.Add(50 * time.Second) }
	_, err = f.svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.reapIdle(base.Add(90*time.Second)))
	assert.Equal(t, 1, f.svc.Count())
	_, err = f.svc.Get(context.Background(), "user-1", idle.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func toastsOfKind(toasts []models.Toast, kind models.ToastKind) []string {
	var out []string
	for _, toast := range toasts {
		if toast.Kind == kind {
			out = append(out, toast.Message)
		}
	}
	return out
}

func TestSessionServiceSecondBatchReplacesExtracted(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)

	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("a.jpg", 10)})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	f.svc.queue.Drain()

	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("b.jpg", 10)})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	f.svc.queue.Drain()

	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, snap.BatchState)
	require.Len(t, snap.Documents, 2)
	require.Len(t, snap.Extracted, 1)
	assert.Equal(t, snap.Documents[0].ID, snap.Extracted[0].DocumentID)
	assert.Equal(t, "b.jpg", snap.Extracted[0].FileName)
	assert.Equal(t, 2, f.classifier.calls)
	assert.Equal(t, []string{titleUploadSucceeded, titleUploadSucceeded}, f.notifier.titles())
}

func TestSessionServiceConfirmRejectedWhileBatchRuns(t *testing.T) {
	f := newSessionFixture(t, time.Hour)
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("a.jpg", 10)})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.NoError(t, err)

	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("b.jpg", 10)})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.ErrorIs(t, err, appErrors.ErrConflict)

	assert.Equal(t, 1, f.repo.count())
	assert.Equal(t, []string{titleUploadSucceeded}, f.notifier.titles())
	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Selection, 1)
}

func TestSessionServiceConfirmWaitsForEverySubmission(t *testing.T) {
	f := newSessionFixture(t, 0)
	f.repo.onCreate = func(ctx context.Context, doc *models.Document) error {
		if doc.Title == "bad" {
			return errors.New("boom")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return nil
		}
	}
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("bad.jpg", 10), jpegInput("good.jpg", 10)})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.Error(t, err)
	assert.Equal(t, []string{titleUploadFailed}, f.notifier.titles())
	assert.Equal(t, 1, f.repo.count())

	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "good", snap.Documents[0].Title)
	assert.Len(t, toastsOfKind(snap.Toasts, models.ToastError), 1)
	assert.Equal(t, []string{toastUploadSucceeded}, toastsOfKind(snap.Toasts, models.ToastSuccess))
	assert.Len(t, snap.Selection, 2)
	assert.Equal(t, models.BatchIdle, snap.BatchState)
}

func TestSessionServiceLocksSelectionDuringConfirm(t *testing.T) {
	f := newSessionFixture(t, 0)
	release := make(chan struct{})
	f.repo.onCreate = func(context.Context, *models.Document) error {
		<-release
		return nil
	}
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("a.jpg", 10)})
	require.NoError(t, err)

	f.svc.mu.RLock()
	sess := f.svc.sessions[snap.ID]
	f.svc.mu.RUnlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Confirm(ctx, "user-1", snap.ID)
		done <- err
	}()
	require.Eventually(t, func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.confirming
	}, time.Second, time.Millisecond)

	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("late.jpg", 10)})
	require.ErrorIs(t, err, appErrors.ErrConflict)
	require.ErrorIs(t, f.svc.ClearFiles(ctx, "user-1", snap.ID), appErrors.ErrConflict)
	require.ErrorIs(t, f.svc.RemoveFile(ctx, "user-1", snap.ID, 0), appErrors.ErrConflict)

	close(release)
	require.NoError(t, <-done)
	f.svc.queue.Drain()

	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("late.jpg", 10)})
	require.NoError(t, err)
}

func TestSessionServiceDocumentStoreOperations(t *testing.T) {
	f := newSessionFixture(t, 0)
	ctx := context.Background()
	snap, err := f.svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.svc.AddFiles(ctx, "user-1", snap.ID, []FileInput{jpegInput("ktp.jpg", 10)})
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	f.svc.queue.Drain()

	docs, err := f.svc.ListDocuments(ctx, "user-1", snap.ID, dto.ListDocumentsQuery{Type: string(models.DocumentTypeOther)})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	docID := docs[0].ID

	_, err = f.svc.ListDocuments(ctx, "user-1", snap.ID, dto.ListDocumentsQuery{Status: "archived"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	title := "KTP Saya"
	updated, err := f.svc.UpdateDocument(ctx, "user-1", snap.ID, docID, dto.UpdateDocumentRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	require.Error(t, f.svc.DeleteDocument(ctx, "user-1", snap.ID, "missing"))
	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.LastError)
	assert.Equal(t, title, snap.Documents[0].Title)

	require.NoError(t, f.svc.ResetError(ctx, "user-1", snap.ID))
	require.NoError(t, f.svc.DeleteDocument(ctx, "user-1", snap.ID, docID))
	snap, err = f.svc.Get(ctx, "user-1", snap.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.LastError)
	assert.Empty(t, snap.Documents)
	assert.Equal(t, 0, f.repo.count())
}
