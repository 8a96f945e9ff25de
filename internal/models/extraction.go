package models

import "time"

// Classification is what a classifier returns for one file.
type Classification struct {
	Type       DocumentType
	Fields     ExtractedFields
	Confidence float64
	ExpiryDate *time.Time
}

// ExtractedDocument is the session-scoped outcome of processing one uploaded file.
type ExtractedDocument struct {
	ID            string          `json:"id"`
	DocumentID    string          `json:"documentId,omitempty"`
	FileName      string          `json:"fileName"`
	FileSize      int64           `json:"fileSize"`
	FileType      string          `json:"fileType"`
	DocumentType  DocumentType    `json:"documentType"`
	ExtractedData ExtractedFields `json:"extractedData"`
	Confidence    float64         `json:"confidence"`
	ExpiryDate    *time.Time      `json:"expiryDate,omitempty"`
	ReminderType  ReminderType    `json:"reminderType"`
	ReminderDate  *time.Time      `json:"reminderDate,omitempty"`
	RemainingTime string          `json:"remainingTime,omitempty"`
	Promoted      bool            `json:"promoted"`
}

// ExtractionResult is returned by the extract endpoint.
type ExtractionResult struct {
	JobID          string          `json:"jobId"`
	DocumentID     string          `json:"documentId"`
	ExtractedData  ExtractedFields `json:"extractedData"`
	Confidence     float64         `json:"confidence"`
	ProcessingTime int64           `json:"processingTime"`
}
