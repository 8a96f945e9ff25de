package models

import "time"

// ReminderType selects how a reminder date is derived from an expiry date.
type ReminderType string

const (
	ReminderAuto   ReminderType = "auto"
	Reminder30Days ReminderType = "30d"
	Reminder7Days  ReminderType = "7d"
	Reminder1Day   ReminderType = "1d"
	ReminderCustom ReminderType = "custom"
)

// ReminderOption is one entry of the reminder picker. Days is nil for custom.
type ReminderOption struct {
	Type  ReminderType `json:"value"`
	Label string       `json:"label"`
	Days  *int         `json:"days"`
}

// ReminderScheduleEntry is one row of an exported reminder schedule.
type ReminderScheduleEntry struct {
	DocumentID    string       `json:"documentId"`
	Title         string       `json:"title"`
	Type          DocumentType `json:"type"`
	ExpiryDate    *time.Time   `json:"expiryDate,omitempty"`
	ReminderType  ReminderType `json:"reminderType,omitempty"`
	ReminderDate  *time.Time   `json:"reminderDate,omitempty"`
	RemainingTime string       `json:"remainingTime"`
}
