package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/events"
)

type memoryNotificationRepo struct {
	items    []models.Notification
	settings map[string]models.NotificationSettings
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{settings: map[string]models.NotificationSettings{}}
}

func (r *memoryNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC().Add(time.Duration(len(r.items)) * time.Millisecond)
	r.items = append(r.items, *n)
	return nil
}

func (r *memoryNotificationRepo) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.items {
		if n.UserID != filter.UserID || (filter.UnreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryNotificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memoryNotificationRepo) MarkAsRead(_ context.Context, userID, id string) error {
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].UserID == userID {
			r.items[i].IsRead = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *memoryNotificationRepo) GetSettings(_ context.Context, userID string) (*models.NotificationSettings, error) {
	s, ok := r.settings[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *memoryNotificationRepo) UpsertSettings(_ context.Context, s *models.NotificationSettings) error {
	r.settings[s.UserID] = *s
	return nil
}

func TestNotificationServiceAddListAndMarkRead(t *testing.T) {
	repo := newMemoryNotificationRepo()
	pub := &stubPublisher{}
	svc := NewNotificationService(repo, pub, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.Add(ctx, "user-1", NotificationInput{Type: models.NotificationSuccess, Title: "Upload berhasil", Message: "2 file berhasil diunggah"})
	require.NoError(t, err)
	second, err := svc.Add(ctx, "user-1", NotificationInput{Type: models.NotificationError, Title: "Upload gagal"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, "user-2", NotificationInput{Type: models.NotificationReminder, Title: "KTP akan berakhir"})
	require.NoError(t, err)

	items, unread, err := svc.List(ctx, "user-1", dto.ListNotificationsQuery{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, 2, unread)
	assert.False(t, items[0].IsRead)

	require.NoError(t, svc.MarkAsRead(ctx, "user-1", first.ID))
	require.NoError(t, svc.MarkAsRead(ctx, "user-1", first.ID))
	_, unread, err = svc.List(ctx, "user-1", dto.ListNotificationsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.Len(t, pub.events, 3)
	assert.Equal(t, events.TypeNotification, pub.events[0].eventType)
}

func TestNotificationServiceMarkAsReadUnknown(t *testing.T) {
	svc := NewNotificationService(newMemoryNotificationRepo(), nil, nil, nil, nil)
	err := svc.MarkAsRead(context.Background(), "user-1", "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestNotificationServiceRejectsInvalidInput(t *testing.T) {
	svc := NewNotificationService(newMemoryNotificationRepo(), nil, nil, nil, nil)
	_, err := svc.Add(context.Background(), "user-1", NotificationInput{Type: "banner", Title: "x"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Add(context.Background(), "user-1", NotificationInput{Type: models.NotificationSuccess})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestNotificationSettingsDefaultsAndUpdate(t *testing.T) {
	repo := newMemoryNotificationRepo()
	svc := NewNotificationService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	settings, err := svc.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, settings.EmailNotifications)
	assert.True(t, settings.PushNotifications)
	assert.Equal(t, 30, settings.ReminderDays)

	off := false
	days := 7
	updated, err := svc.UpdateSettings(ctx, "user-1", dto.UpdateNotificationSettingsRequest{PushNotifications: &off, ReminderDays: &days})
	require.NoError(t, err)
	assert.True(t, updated.EmailNotifications)
	assert.False(t, updated.PushNotifications)
	assert.Equal(t, 7, repo.settings["user-1"].ReminderDays)

	bad := 0
	_, err = svc.UpdateSettings(ctx, "user-1", dto.UpdateNotificationSettingsRequest{ReminderDays: &bad})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
