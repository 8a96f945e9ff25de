package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type userServiceMock struct {
	userID  string
	updated dto.UpdateProfileRequest
	err     error
}

func (m *userServiceMock) Me(_ context.Context, userID string) (*models.User, error) {
	m.userID = userID
	return &models.User{ID: userID, Email: "budi@example.com"}, m.err
}

func (m *userServiceMock) Update(_ context.Context, userID string, req dto.UpdateProfileRequest) (*models.User, error) {
	m.updated = req
	return &models.User{ID: userID}, m.err
}

func (m *userServiceMock) Delete(context.Context, string) error { return m.err }

func TestUserHandlerMe(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)

	c, w := newGinContext(http.MethodGet, "/users/me", nil)
	withUser(c, "user-1")
	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", svc.userID)
}

func TestUserHandlerUpdateRejectsMalformedBody(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{})
	c, w := newGinContext(http.MethodPut, "/users/me", []byte(`{"phone":`))
	withUser(c, "user-1")
	handler.Update(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandlerUpdate(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)
	c, w := newGinContext(http.MethodPut, "/users/me", []byte(`{"fullname":"Budi Santoso"}`))
	withUser(c, "user-1")
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.updated.FullName)
	assert.Equal(t, "Budi Santoso", *svc.updated.FullName)
}

func TestUserHandlerDeleteMissingUser(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{err: appErrors.ErrNotFound})
	c, w := newGinContext(http.MethodDelete, "/users/me", nil)
	withUser(c, "user-1")
	handler.Delete(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
