package dto

import (
	"time"

	"github.com/noah-isme/dokumen-api/internal/models"
)

// SelectedFile describes one file waiting in a session's selection.
type SelectedFile struct {
	FileID   string `json:"fileId"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// SessionSnapshot is the externally visible state of an upload session.
type SessionSnapshot struct {
	ID           string                     `json:"id"`
	Selection    []SelectedFile             `json:"selection"`
	Progress     map[string]int             `json:"progress"`
	Uploading    bool                       `json:"uploading"`
	Documents    []models.Document          `json:"documents"`
	Stages       []models.ProcessingStage   `json:"stages"`
	BatchState   models.BatchState          `json:"batchState"`
	Extracted    []models.ExtractedDocument `json:"extracted"`
	Toasts       []models.Toast             `json:"toasts"`
	LastError    string                     `json:"lastError,omitempty"`
	CreatedAt    time.Time                  `json:"createdAt"`
	LastActivity time.Time                  `json:"lastActivity"`
}

// SelectionResult reports what happened to one add-files request.
type SelectionResult struct {
	Accepted []SelectedFile `json:"accepted"`
	Rejected []string       `json:"rejected"`
	Total    int            `json:"total"`
}

// SetReminderRequest selects a reminder option for one extracted document.
type SetReminderRequest struct {
	ReminderType models.ReminderType `json:"reminderType" validate:"required,oneof=auto 30d 7d 1d custom"`
	CustomDate   *time.Time          `json:"customDate"`
}
