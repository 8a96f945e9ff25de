package dto

import (
	"time"

	"github.com/noah-isme/dokumen-api/internal/models"
)

// ListDocumentsQuery captures document listing query parameters.
type ListDocumentsQuery struct {
	Page      int    `form:"page"`
	PerPage   int    `form:"per_page"`
	SortBy    string `form:"sort_by" validate:"omitempty,oneof=uploaded_at title expiry_date status"`
	SortOrder string `form:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
	Type      string `form:"type"`
	Status    string `form:"status" validate:"omitempty,oneof=uploaded processing completed expired"`
	Search    string `form:"search"`
}

// UploadDocumentRequest carries metadata submitted alongside a file upload.
type UploadDocumentRequest struct {
	Title string `form:"title" json:"title" validate:"omitempty,max=200"`
}

// UpdateDocumentRequest is a partial update; nil fields are left untouched.
type UpdateDocumentRequest struct {
	Title        *string                `json:"title" validate:"omitempty,min=1,max=200"`
	Type         *string                `json:"type"`
	Status       *models.DocumentStatus `json:"status"`
	ExpiryDate   *time.Time             `json:"expiryDate"`
	ReminderType *models.ReminderType   `json:"reminderType" validate:"omitempty,oneof=auto 30d 7d 1d custom"`
	ReminderDate *time.Time             `json:"reminderDate"`
}

// DocumentDownload bundles the opened binary for streaming.
type DocumentDownload struct {
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}
