package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/events"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, userID, id string) error
	GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error
}

// NotificationInput describes a notification to add.
type NotificationInput struct {
	Type       models.NotificationType
	Title      string
	Message    string
	DocumentID *string
}

// Notifier adds entries to a user's notification list.
type Notifier interface {
	Add(ctx context.Context, userID string, input NotificationInput) (*models.Notification, error)
}

// NotificationService manages the persisted notification list and delivery settings.
type NotificationService struct {
	repo      notificationRepository
	publisher events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service. A nil publisher disables fan-out.
func NewNotificationService(repo notificationRepository, publisher events.Publisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, publisher: publisher, metrics: metrics, validator: validate, logger: logger}
}

// List returns the user's notifications newest first together with the unread count.
func (s *NotificationService) List(ctx context.Context, userID string, query dto.ListNotificationsQuery) ([]models.Notification, int, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification query")
	}
	items, err := s.repo.List(ctx, models.NotificationFilter{
		UserID:     userID,
		UnreadOnly: query.UnreadOnly,
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, unread, nil
}

// Add stores an unread notification and publishes it.
func (s *NotificationService) Add(ctx context.Context, userID string, input NotificationInput) (*models.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "notification title is required")
	}
	switch input.Type {
	case models.NotificationReminder, models.NotificationSuccess, models.NotificationWarning, models.NotificationError:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown notification type")
	}

	n := &models.Notification{
		UserID:     userID,
		Type:       input.Type,
		Title:      input.Title,
		Message:    input.Message,
		DocumentID: input.DocumentID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notification")
	}

	err := s.publisher.Publish(ctx, "notification", events.TypeNotification, userID, n)
	s.metrics.RecordEvent(events.TypeNotification, err)
	if err != nil {
		s.logger.Warn("publish notification failed", zap.String("notification_id", n.ID), zap.Error(err))
	}
	return n, nil
}

// MarkAsRead flags one notification as read. Marking an already-read entry succeeds.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkAsRead(ctx, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification as read")
	}
	return nil
}

// GetSettings returns the stored settings or the defaults.
func (s *NotificationService) GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := models.DefaultNotificationSettings(userID)
			return &defaults, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification settings")
	}
	return settings, nil
}

// UpdateSettings applies a partial update.
func (s *NotificationService) UpdateSettings(ctx context.Context, userID string, req dto.UpdateNotificationSettingsRequest) (*models.NotificationSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification settings")
	}
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.EmailNotifications != nil {
		settings.EmailNotifications = *req.EmailNotifications
	}
	if req.PushNotifications != nil {
		settings.PushNotifications = *req.PushNotifications
	}
	if req.ReminderDays != nil {
		settings.ReminderDays = *req.ReminderDays
	}
	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save notification settings")
	}
	return settings, nil
}
