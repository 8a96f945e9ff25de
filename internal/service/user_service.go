package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

const userStorageKeyPrefix = "user-storage:"

// UserStorageKey is the cache key holding the persisted profile of userID.
func UserStorageKey(userID string) string {
	return userStorageKeyPrefix + userID
}

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Provision(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type profileCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UserService manages the profile of the authenticated user. Profiles live in Postgres
// and are mirrored in the cache under UserStorageKey.
type UserService struct {
	repo      userRepository
	cache     profileCache
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService. A nil cache disables mirroring.
func NewUserService(repo userRepository, cache profileCache, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, cache: cache, ttl: ttl, validator: validate, logger: logger}
}

// Me returns the profile of userID, preferring the cached copy.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	if s.cache != nil {
		var cached models.User
		if hit, err := s.cache.Get(ctx, UserStorageKey(userID), &cached); err == nil && hit {
			return &cached, nil
		}
	}
	return s.load(ctx, userID)
}

// Provision stores the identity carried by claims when it is not known yet and returns
// the stored profile.
func (s *UserService) Provision(ctx context.Context, claims *models.TokenClaims) (*models.User, error) {
	if claims == nil || claims.Identity() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no user id")
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	user := &models.User{
		ID:          claims.Identity(),
		Email:       claims.Email,
		Phone:       claims.Phone,
		Role:        role,
		Username:    usernameFromEmail(claims.Email),
		FullName:    claims.FullName,
		Preferences: models.DefaultPreferences(),
	}
	if err := s.repo.Provision(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision user")
	}
	return s.load(ctx, user.ID)
}

// Update applies a partial profile update.
func (s *UserService) Update(ctx context.Context, userID string, req dto.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
	}
	if req.Preferences != nil {
		switch req.Preferences.Theme {
		case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "theme must be light, dark or system")
		}
		user.Preferences = *req.Preferences
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	s.forget(ctx, userID)
	return user, nil
}

// Delete removes the profile together with its documents and notifications.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.forget(ctx, userID)
	return nil
}

func (s *UserService) load(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, UserStorageKey(userID), user, s.ttl); err != nil {
			s.logger.Warn("cache user profile failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *UserService) find(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	return user, nil
}

func (s *UserService) forget(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, UserStorageKey(userID)); err != nil {
		s.logger.Warn("evict user profile failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
