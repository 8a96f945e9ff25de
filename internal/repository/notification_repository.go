package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dokumen-api/internal/models"
)

// NotificationRepository persists user notifications and their delivery settings.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, type, title, message, document_id, is_read, created_at)
	VALUES (:id, :user_id, :type, :title, :message, :document_id, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns notifications newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, title, message, document_id, is_read, created_at FROM notifications WHERE user_id = $1`
	if filter.UnreadOnly {
		query += ` AND is_read = FALSE`
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d OFFSET %d", limit, offset)

	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, filter.UserID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead flags a notification as read. Already-read rows still count as found.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(res, "mark notification read")
}

// GetSettings returns stored settings or sql.ErrNoRows.
func (r *NotificationRepository) GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	const query = `SELECT user_id, email_notifications, push_notifications, reminder_days, updated_at
	FROM notification_settings WHERE user_id = $1`
	var settings models.NotificationSettings
	if err := r.db.GetContext(ctx, &settings, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get notification settings: %w", err)
	}
	return &settings, nil
}

func (r *NotificationRepository) UpsertSettings(ctx context.Context, settings *models.NotificationSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO notification_settings (user_id, email_notifications, push_notifications, reminder_days, updated_at)
	VALUES (:user_id, :email_notifications, :push_notifications, :reminder_days, :updated_at)
	ON CONFLICT (user_id) DO UPDATE SET email_notifications = EXCLUDED.email_notifications,
	push_notifications = EXCLUDED.push_notifications, reminder_days = EXCLUDED.reminder_days, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert notification settings: %w", err)
	}
	return nil
}
