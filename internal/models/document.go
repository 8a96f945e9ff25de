package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DocumentType enumerates the identity documents the service recognises.
type DocumentType string

const (
	DocumentTypeKTP      DocumentType = "KTP"
	DocumentTypeSIM      DocumentType = "SIM"
	DocumentTypeSTNK     DocumentType = "STNK"
	DocumentTypePassport DocumentType = "Passport"
	DocumentTypeOther    DocumentType = "Other"
)

// DocumentTypes lists every document type in declaration order.
var DocumentTypes = []DocumentType{
	DocumentTypeKTP,
	DocumentTypeSIM,
	DocumentTypeSTNK,
	DocumentTypePassport,
	DocumentTypeOther,
}

// ParseDocumentType matches raw case-insensitively. "Unknown" is accepted as Other.
func ParseDocumentType(raw string) (DocumentType, bool) {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "unknown") {
		return DocumentTypeOther, true
	}
	for _, t := range DocumentTypes {
		if strings.EqualFold(trimmed, string(t)) {
			return t, true
		}
	}
	return "", false
}

// DocumentStatus tracks a document through its lifecycle.
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusExpired    DocumentStatus = "expired"
)

var statusRank = map[DocumentStatus]int{
	DocumentStatusUploaded:   0,
	DocumentStatusProcessing: 1,
	DocumentStatusCompleted:  2,
	DocumentStatusExpired:    3,
}

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition allows a single forward step or staying in place.
func CanTransition(from, to DocumentStatus) bool {
	f, okFrom := statusRank[from]
	t, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return t == f || t == f+1
}

// ExtractedFields maps a field label to its extracted value. Stored as JSONB.
type ExtractedFields map[string]string

// Value implements driver.Valuer.
func (f ExtractedFields) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *ExtractedFields) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported extracted_data type %T", src)
	}
}

// Document is a stored identity document owned by one user.
type Document struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"userId"`
	Title          string          `db:"title" json:"title"`
	Type           DocumentType    `db:"type" json:"type"`
	Status         DocumentStatus  `db:"status" json:"status"`
	FilePath       string          `db:"file_path" json:"-"`
	ThumbnailPath  *string         `db:"thumbnail_path" json:"-"`
	FileSize       int64           `db:"file_size" json:"fileSize"`
	MimeType       string          `db:"mime_type" json:"mimeType"`
	ExpiryDate     *time.Time      `db:"expiry_date" json:"expiryDate,omitempty"`
	ExtractedData  ExtractedFields `db:"extracted_data" json:"extractedData,omitempty"`
	Confidence     *float64        `db:"confidence" json:"confidence,omitempty"`
	ReminderType   *ReminderType   `db:"reminder_type" json:"reminderType,omitempty"`
	ReminderDate   *time.Time      `db:"reminder_date" json:"reminderDate,omitempty"`
	ReminderSentAt *time.Time      `db:"reminder_sent_at" json:"-"`
	UploadedAt     time.Time       `db:"uploaded_at" json:"uploadedAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`

	URL           string `db:"-" json:"url,omitempty"`
	ThumbnailURL  string `db:"-" json:"thumbnailUrl,omitempty"`
	RemainingTime string `db:"-" json:"remainingTime,omitempty"`
}

// Validate checks the status/extraction agreement.
func (d *Document) Validate() error {
	if !d.Status.Valid() {
		return fmt.Errorf("unknown status %q", d.Status)
	}
	if len(d.ExtractedData) > 0 && d.Status != DocumentStatusCompleted && d.Status != DocumentStatusExpired {
		return fmt.Errorf("document with extracted data must be completed, got %q", d.Status)
	}
	return nil
}

// DocumentFilter narrows document listing.
type DocumentFilter struct {
	UserID    string
	Type      DocumentType
	Status    DocumentStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
