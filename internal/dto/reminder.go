package dto

import (
	"time"

	"github.com/noah-isme/dokumen-api/internal/models"
)

// ComputeReminderRequest asks for the reminder date of an expiry under an option.
type ComputeReminderRequest struct {
	ExpiryDate   time.Time           `json:"expiryDate" validate:"required"`
	ReminderType models.ReminderType `json:"reminderType" validate:"required,oneof=auto 30d 7d 1d custom"`
	DocumentType string              `json:"documentType"`
	CustomDate   *time.Time          `json:"customDate"`
}

// ComputeReminderResponse returns the derived reminder date and remaining time.
type ComputeReminderResponse struct {
	ReminderType  models.ReminderType `json:"reminderType"`
	ReminderDate  *time.Time          `json:"reminderDate"`
	RemainingTime string              `json:"remainingTime"`
}

// ReminderSweepResult summarises one reminder sweep run.
type ReminderSweepResult struct {
	RemindersSent    int       `json:"remindersSent"`
	DocumentsExpired int       `json:"documentsExpired"`
	RanAt            time.Time `json:"ranAt"`
}
