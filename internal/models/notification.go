package models

import "time"

// NotificationType categorises a notification.
type NotificationType string

const (
	NotificationReminder NotificationType = "reminder"
	NotificationSuccess  NotificationType = "success"
	NotificationWarning  NotificationType = "warning"
	NotificationError    NotificationType = "error"
)

// Notification is a persisted entry of a user's notification list.
type Notification struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"-"`
	Type       NotificationType `db:"type" json:"type"`
	Title      string           `db:"title" json:"title"`
	Message    string           `db:"message" json:"message"`
	DocumentID *string          `db:"document_id" json:"documentId,omitempty"`
	IsRead     bool             `db:"is_read" json:"isRead"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// NotificationSettings are per-user delivery preferences.
type NotificationSettings struct {
	UserID             string    `db:"user_id" json:"-"`
	EmailNotifications bool      `db:"email_notifications" json:"emailNotifications"`
	PushNotifications  bool      `db:"push_notifications" json:"pushNotifications"`
	ReminderDays       int       `db:"reminder_days" json:"reminderDays"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// DefaultNotificationSettings returns the settings a user starts with.
func DefaultNotificationSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:             userID,
		EmailNotifications: true,
		PushNotifications:  true,
		ReminderDays:       30,
	}
}

// NotificationFilter narrows notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}
