package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/pkg/events"
)

const maxRecordedToasts = 50

// Toaster delivers transient messages. Delivery is best effort and never fails the caller.
type Toaster interface {
	Toast(ctx context.Context, kind models.ToastKind, message string)
}

// ToastRecorder keeps the most recent toasts of one session.
type ToastRecorder struct {
	mu     sync.Mutex
	toasts []models.Toast
	now    func() time.Time
}

// NewToastRecorder builds an empty recorder.
func NewToastRecorder() *ToastRecorder {
	return &ToastRecorder{now: time.Now}
}

// Toast implements Toaster.
func (r *ToastRecorder) Toast(_ context.Context, kind models.ToastKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, models.Toast{Kind: kind, Message: message, At: r.now().UTC()})
	if len(r.toasts) > maxRecordedToasts {
		r.toasts = append([]models.Toast(nil), r.toasts[len(r.toasts)-maxRecordedToasts:]...)
	}
}

// Snapshot returns a copy of the recorded toasts, oldest first.
func (r *ToastRecorder) Snapshot() []models.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// LogToaster writes toasts to the structured log.
type LogToaster struct {
	logger *zap.Logger
	fields []zap.Field
}

// NewLogToaster builds a toaster that logs with the given fields attached.
func NewLogToaster(logger *zap.Logger, fields ...zap.Field) *LogToaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogToaster{logger: logger, fields: fields}
}

// Toast implements Toaster.
func (t *LogToaster) Toast(_ context.Context, kind models.ToastKind, message string) {
	fields := append([]zap.Field{zap.String("kind", string(kind)), zap.String("message", message)}, t.fields...)
	if kind == models.ToastError {
		t.logger.Warn("toast", fields...)
		return
	}
	t.logger.Debug("toast", fields...)
}

// EventToaster publishes toasts on the message bus for the owning user.
type EventToaster struct {
	publisher events.Publisher
	userID    string
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEventToaster builds a toaster publishing under userID.
func NewEventToaster(publisher events.Publisher, userID string, metrics *MetricsService, logger *zap.Logger) *EventToaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventToaster{publisher: publisher, userID: userID, metrics: metrics, logger: logger}
}

// Toast implements Toaster.
func (t *EventToaster) Toast(ctx context.Context, kind models.ToastKind, message string) {
	if t.publisher == nil {
		return
	}
	toast := models.Toast{Kind: kind, Message: message, At: time.Now().UTC()}
	err := t.publisher.Publish(ctx, "toast", events.TypeToast, t.userID, toast)
	t.metrics.RecordEvent(events.TypeToast, err)
	if err != nil {
		t.logger.Warn("publish toast failed", zap.String("user_id", t.userID), zap.Error(err))
	}
}

// MultiToaster fans a toast out to every member.
type MultiToaster []Toaster

// Toast implements Toaster.
func (m MultiToaster) Toast(ctx context.Context, kind models.ToastKind, message string) {
	for _, t := range m {
		if t != nil {
			t.Toast(ctx, kind, message)
		}
	}
}
