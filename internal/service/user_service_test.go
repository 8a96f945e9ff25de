package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type mockUserRepo struct {
	users map[string]models.User
	finds int
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	repo := &mockUserRepo{users: map[string]models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	m.finds++
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (m *mockUserRepo) Provision(_ context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		m.users[user.ID] = *user
	}
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

type memoryProfileCache struct {
	entries map[string][]byte
	setErr  error
}

func newMemoryProfileCache() *memoryProfileCache {
	return &memoryProfileCache{entries: map[string][]byte{}}
}

func (c *memoryProfileCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryProfileCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryProfileCache) Delete(_ context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func sampleUser() models.User {
	return models.User{ID: "user-1", Email: "rina@example.com", Role: models.RoleUser, FullName: "Rina", Preferences: models.DefaultPreferences()}
}

func TestUserServiceMeUsesStorageKey(t *testing.T) {
	repo := newMockUserRepo(sampleUser())
	cache := newMemoryProfileCache()
	svc := NewUserService(repo, cache, time.Hour, nil, nil)

	user, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Rina", user.FullName)
	assert.Contains(t, cache.entries, "user-storage:user-1")

	_, err = svc.Me(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.finds)
}

func TestUserServiceMeNotFound(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, time.Hour, nil, nil)
	_, err := svc.Me(context.Background(), "ghost")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceCacheFailureIsNotFatal(t *testing.T) {
	cache := newMemoryProfileCache()
	cache.setErr = errors.New("redis down")
	svc := NewUserService(newMockUserRepo(sampleUser()), cache, time.Hour, nil, nil)

	user, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestUserServiceProvision(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, time.Hour, nil, nil)

	claims := &models.TokenClaims{Email: "budi@example.com", FullName: "Budi"}
	claims.Subject = "user-9"
	user, err := svc.Provision(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, "user-9", user.ID)
	assert.Equal(t, "budi", user.Username)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.ThemeSystem, user.Preferences.Theme)

	// provisioning again keeps the stored profile
	repo.users["user-9"] = models.User{ID: "user-9", FullName: "Budi Santoso"}
	user, err = svc.Provision(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", user.FullName)

	_, err = svc.Provision(context.Background(), &models.TokenClaims{})
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestUserServiceUpdateInvalidatesCache(t *testing.T) {
	cache := newMemoryProfileCache()
	repo := newMockUserRepo(sampleUser())
	svc := NewUserService(repo, cache, time.Hour, nil, nil)
	_, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)

	name := "  Rina Wulandari "
	user, err := svc.Update(context.Background(), "user-1", dto.UpdateProfileRequest{
		FullName:    &name,
		Preferences: &models.UserPreferences{Theme: models.ThemeDark, Notifications: false},
	})
	require.NoError(t, err)
	assert.Equal(t, "Rina Wulandari", user.FullName)
	assert.Equal(t, models.ThemeDark, repo.users["user-1"].Preferences.Theme)
	assert.NotContains(t, cache.entries, "user-storage:user-1")

	_, err = svc.Update(context.Background(), "user-1", dto.UpdateProfileRequest{
		Preferences: &models.UserPreferences{Theme: "neon"},
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	short := "ab"
	_, err = svc.Update(context.Background(), "user-1", dto.UpdateProfileRequest{Username: &short})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceDelete(t *testing.T) {
	cache := newMemoryProfileCache()
	svc := NewUserService(newMockUserRepo(sampleUser()), cache, time.Hour, nil, nil)
	_, err := svc.Me(context.Background(), "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "user-1"))
	assert.Empty(t, cache.entries)
	require.ErrorIs(t, svc.Delete(context.Background(), "user-1"), appErrors.ErrNotFound)
}
