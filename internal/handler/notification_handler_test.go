package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type notificationServiceMock struct {
	query    dto.ListNotificationsQuery
	settings dto.UpdateNotificationSettingsRequest
	markedID string
	markErr  error
	unread   int
	notices  []models.Notification
}

func (m *notificationServiceMock) List(_ context.Context, _ string, query dto.ListNotificationsQuery) ([]models.Notification, int, error) {
	m.query = query
	return m.notices, m.unread, nil
}

func (m *notificationServiceMock) MarkAsRead(_ context.Context, _, id string) error {
	m.markedID = id
	return m.markErr
}

func (m *notificationServiceMock) GetSettings(_ context.Context, userID string) (*models.NotificationSettings, error) {
	return &models.NotificationSettings{UserID: userID, ReminderDays: 30}, nil
}

func (m *notificationServiceMock) UpdateSettings(_ context.Context, userID string, req dto.UpdateNotificationSettingsRequest) (*models.NotificationSettings, error) {
	m.settings = req
	return &models.NotificationSettings{UserID: userID, ReminderDays: *req.ReminderDays}, nil
}

func TestNotificationHandlerListCarriesUnreadCount(t *testing.T) {
	svc := &notificationServiceMock{unread: 3, notices: []models.Notification{{ID: "n-1", Title: "Upload berhasil"}}}
	handler := NewNotificationHandler(svc)

	c, w := newGinContext(http.MethodGet, "/notifications?unread_only=true&limit=10", nil)
	withUser(c, "user-1")
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.query.UnreadOnly)
	assert.Equal(t, 10, svc.query.Limit)
	env := decodeEnvelope(t, w)
	assert.EqualValues(t, 3, env.Meta["unread_count"])
}

func TestNotificationHandlerMarkAsRead(t *testing.T) {
	svc := &notificationServiceMock{}
	handler := NewNotificationHandler(svc)

	c, w := newGinContext(http.MethodPatch, "/notifications/n-1/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}
	withUser(c, "user-1")
	handler.MarkAsRead(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "n-1", svc.markedID)

	svc.markErr = appErrors.ErrNotFound
	c, w = newGinContext(http.MethodPatch, "/notifications/n-2/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "n-2"}}
	withUser(c, "user-1")
	handler.MarkAsRead(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandlerUpdateSettings(t *testing.T) {
	svc := &notificationServiceMock{}
	handler := NewNotificationHandler(svc)

	body, _ := json.Marshal(map[string]interface{}{"reminderDays": 14})
	c, w := newGinContext(http.MethodPut, "/notifications/settings", body)
	withUser(c, "user-1")
	handler.UpdateSettings(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.settings.ReminderDays)
	assert.Equal(t, 14, *svc.settings.ReminderDays)
	assert.Nil(t, svc.settings.EmailNotifications)
}
