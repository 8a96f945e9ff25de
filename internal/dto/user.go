package dto

import "github.com/noah-isme/dokumen-api/internal/models"

// UpdateProfileRequest is a partial profile update.
type UpdateProfileRequest struct {
	Phone       *string                 `json:"phone" validate:"omitempty,max=32"`
	Username    *string                 `json:"username" validate:"omitempty,min=3,max=64"`
	FullName    *string                 `json:"fullname" validate:"omitempty,min=1,max=128"`
	Address     *string                 `json:"address" validate:"omitempty,max=255"`
	Preferences *models.UserPreferences `json:"preferences"`
}
