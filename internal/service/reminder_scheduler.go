package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

const sweepBatchSize = 100

type reminderRepository interface {
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.Document, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Document, error)
	MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error
	MarkExpired(ctx context.Context, id string, at time.Time) error
}

// ReminderScheduler turns due reminder dates into notifications and expires documents
// whose expiry date has passed.
type ReminderScheduler struct {
	repo     reminderRepository
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu sync.Mutex
}

// NewReminderScheduler constructs the scheduler.
func NewReminderScheduler(repo reminderRepository, notifier Notifier, metrics *MetricsService, logger *zap.Logger, interval time.Duration) *ReminderScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderScheduler{repo: repo, notifier: notifier, metrics: metrics, logger: logger, interval: interval, now: time.Now}
}

// RunOnce performs a single sweep at now. Runs are serialised.
func (s *ReminderScheduler) RunOnce(ctx context.Context, now time.Time) (*dto.ReminderSweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &dto.ReminderSweepResult{RanAt: now.UTC()}
	due, err := s.repo.ListDueReminders(ctx, now, sweepBatchSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list due reminders")
	}
	for _, doc := range due {
		if err := s.repo.MarkReminderSent(ctx, doc.ID, now); err != nil {
			s.logger.Warn("mark reminder sent failed", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		s.notify(ctx, doc, reminderNotice(doc, now))
		result.RemindersSent++
	}

	expired, err := s.repo.ListExpired(ctx, now, sweepBatchSize)
	if err != nil {
		s.metrics.RecordSweep(result.RemindersSent, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired documents")
	}
	for _, doc := range expired {
		if err := s.repo.MarkExpired(ctx, doc.ID, now); err != nil {
			s.logger.Warn("mark document expired failed", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		s.notify(ctx, doc, expiredNotice(doc))
		result.DocumentsExpired++
	}

	s.metrics.RecordSweep(result.RemindersSent, result.DocumentsExpired)
	if result.RemindersSent > 0 || result.DocumentsExpired > 0 {
		s.logger.Info("reminder sweep finished", zap.Int("reminders", result.RemindersSent), zap.Int("expired", result.DocumentsExpired))
	}
	return result, nil
}

// Start runs a sweep on every tick until ctx is cancelled.
func (s *ReminderScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx, s.now().UTC()); err != nil {
					s.logger.Sugar().Warnw("reminder sweep failed", "error", err)
				}
			}
		}
	}()
}

func (s *ReminderScheduler) notify(ctx context.Context, doc models.Document, input NotificationInput) {
	if s.notifier == nil {
		return
	}
	id := doc.ID
	input.DocumentID = &id
	if _, err := s.notifier.Add(ctx, doc.UserID, input); err != nil {
		s.logger.Warn("record reminder notification failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

func reminderNotice(doc models.Document, now time.Time) NotificationInput {
	days := 0
	if doc.ExpiryDate != nil {
		days = DaysUntil(*doc.ExpiryDate, now)
	}
	return NotificationInput{
		Type:    models.NotificationReminder,
		Title:   fmt.Sprintf("%s akan berakhir", doc.Type),
		Message: fmt.Sprintf("%s Anda akan berakhir dalam %d hari", doc.Type, days),
	}
}

func expiredNotice(doc models.Document) NotificationInput {
	return NotificationInput{
		Type:    models.NotificationWarning,
		Title:   fmt.Sprintf("%s telah kadaluarsa", doc.Type),
		Message: fmt.Sprintf("%s sudah melewati tanggal kadaluarsa", doc.Title),
	}
}
