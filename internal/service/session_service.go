package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/pkg/config"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/events"
	"github.com/noah-isme/dokumen-api/pkg/jobs"
)

const processBatchJob = "process_batch"

type sessionDocuments interface {
	documentBackend
	Promote(ctx context.Context, userID string, extracted models.ExtractedDocument) (*models.Document, error)
}

// SessionServiceConfig tunes upload sessions. A zero MaxRetries disables job retries.
type SessionServiceConfig struct {
	Rules      UploadRules
	Store      DocumentStoreOptions
	TTL        time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// uploadSession owns every timer and goroutine started on behalf of one upload flow.
type uploadSession struct {
	id     string
	userID string

	ctx    context.Context
	cancel context.CancelFunc

	store  *DocumentStore
	toasts *ToastRecorder
	batch  *ProcessingBatch

	mu           sync.Mutex
	selection    *Selection
	confirming   bool
	closed       bool
	createdAt    time.Time
	lastActivity time.Time
}

func (s *uploadSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

// SessionService hosts upload sessions: selection, concurrent submission, staged
// processing and reminder selection for the resulting extracted documents.
type SessionService struct {
	documents sessionDocuments
	notifier  Notifier
	simulator *ProcessingSimulator
	publisher events.Publisher
	metrics   *MetricsService
	validate  *validator.Validate
	logger    *zap.Logger
	cfg       SessionServiceConfig
	queue     *jobs.Queue
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*uploadSession
	stopReap context.CancelFunc
	reapDone chan struct{}
}

// NewSessionService wires the session host. Call Start before use.
func NewSessionService(documents sessionDocuments, notifier Notifier, simulator *ProcessingSimulator, publisher events.Publisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg SessionServiceConfig) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.Rules.MaxFiles <= 0 {
		cfg.Rules = NewUploadRules(config.UploadConfig{})
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = -1
	}
	svc := &SessionService{
		documents: documents,
		notifier:  notifier,
		simulator: simulator,
		publisher: publisher,
		metrics:   metrics,
		validate:  validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*uploadSession),
	}
	svc.queue = jobs.NewQueue("sessions", svc.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the processing workers and the idle-session reaper.
func (s *SessionService) Start(ctx context.Context) {
	s.queue.Start(ctx)

	reapCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.stopReap = cancel
	s.reapDone = make(chan struct{})
	done := s.reapDone
	s.mu.Unlock()

	interval := s.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-reapCtx.Done():
				return
			case <-ticker.C:
				s.reapIdle(s.now())
			}
		}
	}()
}

// Stop closes every session and stops the workers.
func (s *SessionService) Stop() {
	s.mu.Lock()
	stop, done := s.stopReap, s.reapDone
	sessions := make([]*uploadSession, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		s.shutdown(sess)
	}
	if stop != nil {
		stop()
		<-done
	}
	s.queue.Stop()
}

// Create opens a session for userID.
func (s *SessionService) Create(ctx context.Context, userID string) (*dto.SessionSnapshot, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user id is required")
	}
	id := uuid.NewString()
	recorder := NewToastRecorder()
	toaster := MultiToaster{
		recorder,
		NewLogToaster(s.logger, zap.String("session_id", id), zap.String("user_id", userID)),
		NewEventToaster(s.publisher, userID, s.metrics, s.logger),
	}
	sessCtx, cancel := context.WithCancel(context.Background())
	now := s.now().UTC()
	sess := &uploadSession{
		id:           id,
		userID:       userID,
		ctx:          sessCtx,
		cancel:       cancel,
		store:        NewDocumentStore(s.documents, userID, toaster, s.cfg.Store),
		toasts:       recorder,
		batch:        NewProcessingBatch(),
		selection:    NewSelection(s.cfg.Rules),
		createdAt:    now,
		lastActivity: now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.logger.Debug("upload session opened", zap.String("session_id", id), zap.String("user_id", userID))
	return s.snapshot(sess), nil
}

// Get returns the current snapshot of a session.
func (s *SessionService) Get(ctx context.Context, userID, id string) (*dto.SessionSnapshot, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

// Close cancels every timer of the session and forgets it.
func (s *SessionService) Close(ctx context.Context, userID, id string) error {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.shutdown(sess)
	return nil
}

// AddFiles offers files to the session's selection.
func (s *SessionService) AddFiles(ctx context.Context, userID, id string, files []FileInput) (dto.SelectionResult, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return dto.SelectionResult{}, err
	}
	sess.mu.Lock()
	if sess.confirming {
		sess.mu.Unlock()
		return dto.SelectionResult{}, errUploadInProgress()
	}
	result, notice, addErr := sess.selection.Add(files)
	sess.lastActivity = s.now().UTC()
	sess.mu.Unlock()

	if addErr != nil {
		s.metrics.RecordUploads(0, len(files))
	} else {
		s.metrics.RecordUploads(len(result.Accepted), len(result.Rejected))
	}
	if notice != nil {
		s.notify(ctx, userID, *notice)
	}
	return result, addErr
}

// RemoveFile drops one file from the selection.
func (s *SessionService) RemoveFile(ctx context.Context, userID, id string, index int) error {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.confirming {
		return errUploadInProgress()
	}
	sess.lastActivity = s.now().UTC()
	return sess.selection.Remove(index)
}

// ClearFiles empties the selection.
func (s *SessionService) ClearFiles(ctx context.Context, userID, id string) error {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.confirming {
		return errUploadInProgress()
	}
	sess.lastActivity = s.now().UTC()
	sess.selection.Clear()
	return nil
}

// Confirm submits every selected file concurrently and waits for all of them. Any failure
// records one error notification and leaves the session where it was. Full success
// records one success notification, clears the selection and schedules processing of a
// new batch, discarding the previous batch's extracted documents.
func (s *SessionService) Confirm(ctx context.Context, userID, id string) (*dto.SessionSnapshot, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.confirming {
		sess.mu.Unlock()
		return nil, errUploadInProgress()
	}
	if sess.batch.Busy() {
		sess.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "batch is still processing")
	}
	if sess.selection.Len() == 0 {
		sess.mu.Unlock()
		s.notify(ctx, userID, NotificationInput{Type: models.NotificationError, Title: titleEmptySelection, Message: messageEmptySelection})
		return nil, appErrors.Clone(appErrors.ErrEmptySelection, messageEmptySelection)
	}
	sess.confirming = true
	metas := sess.selection.Files()
	files := sess.selection.inputs()
	sess.lastActivity = s.now().UTC()
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.confirming = false
		sess.mu.Unlock()
	}()

	inputs := make([]ProcessingInput, len(files))
	var g errgroup.Group
	for i := range files {
		i := i
		g.Go(func() error {
			doc, err := sess.store.Create(sess.ctx, metas[i].FileID, files[i])
			if err != nil {
				return err
			}
			inputs[i] = ProcessingInput{FileID: metas[i].FileID, DocumentID: doc.ID, File: files[i]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("upload batch failed", zap.String("session_id", id), zap.Error(err))
		s.notify(ctx, userID, NotificationInput{Type: models.NotificationError, Title: titleUploadFailed, Message: messageUploadFailed})
		if sess.ctx.Err() != nil {
			return nil, appErrors.Clone(appErrors.ErrSessionClosed, "upload session closed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, messageUploadFailed)
	}

	s.notify(ctx, userID, NotificationInput{
		Type:    models.NotificationSuccess,
		Title:   titleUploadSucceeded,
		Message: fmt.Sprintf("%d file berhasil diunggah", len(files)),
	})

	sess.mu.Lock()
	sess.selection.Clear()
	sess.mu.Unlock()

	if err := sess.batch.Load(inputs); err != nil {
		return nil, err
	}
	if err := s.schedule(sess); err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

// Process schedules the loaded batch again. A batch that is processing or completed is
// left untouched.
func (s *SessionService) Process(ctx context.Context, userID, id string) (*dto.SessionSnapshot, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	sess.touch(s.now().UTC())
	switch sess.batch.State() {
	case models.BatchProcessing, models.BatchCompleted:
		return s.snapshot(sess), nil
	}
	if sess.batch.InputCount() == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySelection, "no confirmed upload to process")
	}
	if err := s.schedule(sess); err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

// SetReminder applies a reminder option to one extracted document.
func (s *SessionService) SetReminder(ctx context.Context, userID, id, docID string, req dto.SetReminderRequest) (*models.ExtractedDocument, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reminder payload")
	}
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess.touch(now)
	return sess.batch.SetReminder(docID, req.ReminderType, req.CustomDate, now)
}

// ApplyAuto resets every extracted document of the session to the auto policy.
func (s *SessionService) ApplyAuto(ctx context.Context, userID, id string) ([]models.ExtractedDocument, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess.touch(now)
	sess.batch.ApplyAutoAll()
	return sess.batch.Extracted(now), nil
}

// Promote writes one extracted document back onto its stored document.
func (s *SessionService) Promote(ctx context.Context, userID, id, docID string) (*models.Document, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	sess.touch(s.now().UTC())
	extracted, err := sess.batch.Find(docID)
	if err != nil {
		return nil, err
	}
	if extracted.Promoted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "extracted document already saved")
	}
	doc, err := s.documents.Promote(ctx, userID, *extracted)
	if err != nil {
		return nil, err
	}
	sess.batch.MarkPromoted(docID)
	sess.store.upsert(*doc)
	return doc, nil
}

// ListDocuments merges filters into the session's document store and refreshes it.
// A failed refresh keeps the previous collection.
func (s *SessionService) ListDocuments(ctx context.Context, userID, id string, filters dto.ListDocumentsQuery) ([]models.Document, error) {
	if err := s.validate.Struct(filters); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	sess.touch(s.now().UTC())
	sess.store.SetFilters(filters)
	if err := sess.store.Fetch(ctx); err != nil {
		return nil, err
	}
	return sess.store.State().Documents, nil
}

// UpdateDocument updates one document through the session's document store.
func (s *SessionService) UpdateDocument(ctx context.Context, userID, id, docID string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	sess.touch(s.now().UTC())
	return sess.store.Update(ctx, docID, req)
}

// DeleteDocument deletes one document through the session's document store.
func (s *SessionService) DeleteDocument(ctx context.Context, userID, id, docID string) error {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	sess.touch(s.now().UTC())
	return sess.store.Delete(ctx, docID)
}

// ResetError dismisses the last store and processing error of a session.
func (s *SessionService) ResetError(ctx context.Context, userID, id string) error {
	sess, err := s.lookup(userID, id)
	if err != nil {
		return err
	}
	sess.touch(s.now().UTC())
	sess.store.ResetError()
	sess.batch.ResetError()
	return nil
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) schedule(sess *uploadSession) error {
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: processBatchJob, Payload: sess.id})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to schedule processing")
	}
	return nil
}

func (s *SessionService) handleJob(ctx context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, jobs.ErrPermanent)
	}

	runCtx, cancel := context.WithCancel(sess.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := s.simulator.Run(runCtx, sess.batch); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("session %s: %w", id, jobs.ErrPermanent)
		}
		return err
	}
	return nil
}

func (s *SessionService) reapIdle(now time.Time) int {
	cutoff := now.Add(-s.cfg.TTL)
	var idle []*uploadSession
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		expired := sess.lastActivity.Before(cutoff) && !sess.confirming && sess.batch.State() != models.BatchProcessing
		sess.mu.Unlock()
		if expired {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		s.shutdown(sess)
	}
	if len(idle) > 0 {
		s.logger.Info("closed idle upload sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

func (s *SessionService) shutdown(sess *uploadSession) {
	sess.mu.Lock()
	sess.closed = true
	sess.mu.Unlock()
	sess.cancel()
}

func errUploadInProgress() error {
	return appErrors.Clone(appErrors.ErrConflict, "upload already in progress")
}

func (s *SessionService) lookup(userID, id string) (*uploadSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.userID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "upload session not found")
	}
	sess.mu.Lock()
	closed := sess.closed
	sess.mu.Unlock()
	if closed {
		return nil, appErrors.ErrSessionClosed
	}
	return sess, nil
}

func (s *SessionService) notify(ctx context.Context, userID string, input NotificationInput) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Add(ctx, userID, input); err != nil {
		s.logger.Warn("record notification failed", zap.String("user_id", userID), zap.String("title", input.Title), zap.Error(err))
	}
}

func (s *SessionService) snapshot(sess *uploadSession) *dto.SessionSnapshot {
	now := s.now().UTC()
	state := sess.store.State()
	sess.mu.Lock()
	selection := sess.selection.Files()
	createdAt, lastActivity := sess.createdAt, sess.lastActivity
	sess.mu.Unlock()

	lastErr := state.LastError
	if batchErr := sess.batch.LastError(); batchErr != "" {
		lastErr = batchErr
	}
	return &dto.SessionSnapshot{
		ID:           sess.id,
		Selection:    selection,
		Progress:     state.Progress,
		Uploading:    state.Processing,
		Documents:    state.Documents,
		Stages:       sess.batch.Stages(),
		BatchState:   sess.batch.State(),
		Extracted:    sess.batch.Extracted(now),
		Toasts:       sess.toasts.Snapshot(),
		LastError:    lastErr,
		CreatedAt:    createdAt,
		LastActivity: lastActivity,
	}
}
