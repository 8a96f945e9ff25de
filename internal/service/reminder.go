package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

const (
	// RemainingExpired is shown once the expiry date has been reached.
	RemainingExpired = "Sudah kadaluarsa"
	// RemainingUnknown is shown when a document carries no expiry date.
	RemainingUnknown = "Tidak tersedia"
)

var reminderOffsets = map[models.ReminderType]int{
	models.Reminder30Days: 30,
	models.Reminder7Days:  7,
	models.Reminder1Day:   1,
}

// ReminderOptions returns the static reminder picker entries.
func ReminderOptions() []models.ReminderOption {
	days := func(n int) *int { return &n }
	return []models.ReminderOption{
		{Type: models.ReminderAuto, Label: "Auto (AI Recommendation)", Days: days(0)},
		{Type: models.Reminder30Days, Label: "30 hari sebelum kadaluarsa", Days: days(30)},
		{Type: models.Reminder7Days, Label: "7 hari sebelum kadaluarsa", Days: days(7)},
		{Type: models.Reminder1Day, Label: "1 hari sebelum kadaluarsa", Days: days(1)},
		{Type: models.ReminderCustom, Label: "Custom...", Days: nil},
	}
}

// ParseReminderType validates a raw reminder type.
func ParseReminderType(raw string) (models.ReminderType, bool) {
	t := models.ReminderType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case models.ReminderAuto, models.Reminder30Days, models.Reminder7Days, models.Reminder1Day, models.ReminderCustom:
		return t, true
	}
	return "", false
}

// StartOfDayUTC truncates t to midnight UTC of its UTC calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AutoReminderDays is the offset the auto policy picks for a document type.
func AutoReminderDays(docType models.DocumentType) int {
	switch docType {
	case models.DocumentTypeSTNK:
		return 7
	case models.DocumentTypeOther, "":
		return 1
	default:
		return 30
	}
}

// ComputeAutoReminder applies the auto policy to expiry.
func ComputeAutoReminder(docType models.DocumentType, expiry time.Time) time.Time {
	return StartOfDayUTC(expiry).AddDate(0, 0, -AutoReminderDays(docType))
}

// ComputeReminderDate derives the reminder date for option. Offsets subtract calendar days
// from the expiry's UTC midnight. Custom returns the supplied date unchanged, rejecting
// dates earlier than now; a custom choice without a date yields nil.
func ComputeReminderDate(expiry time.Time, option models.ReminderType, docType models.DocumentType, custom *time.Time, now time.Time) (*time.Time, error) {
	switch option {
	case models.ReminderAuto:
		date := ComputeAutoReminder(docType, expiry)
		return &date, nil
	case models.ReminderCustom:
		if custom == nil {
			return nil, nil
		}
		if custom.Before(now) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "tanggal pengingat tidak boleh sebelum hari ini")
		}
		date := *custom
		return &date, nil
	}
	days, ok := reminderOffsets[option]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown reminder option %q", option))
	}
	date := StartOfDayUTC(expiry).AddDate(0, 0, -days)
	return &date, nil
}

// ApplyReminder sets the reminder of one extracted document.
func ApplyReminder(doc *models.ExtractedDocument, option models.ReminderType, custom *time.Time, now time.Time) error {
	if doc.ExpiryDate == nil {
		if option == models.ReminderCustom {
			doc.ReminderType = option
			doc.ReminderDate = nil
			if custom != nil {
				if custom.Before(now) {
					return appErrors.Clone(appErrors.ErrValidation, "tanggal pengingat tidak boleh sebelum hari ini")
				}
				date := *custom
				doc.ReminderDate = &date
			}
			return nil
		}
		return appErrors.Clone(appErrors.ErrValidation, "dokumen tidak memiliki tanggal kadaluarsa")
	}
	date, err := ComputeReminderDate(*doc.ExpiryDate, option, doc.DocumentType, custom, now)
	if err != nil {
		return err
	}
	doc.ReminderType = option
	doc.ReminderDate = date
	return nil
}

// ApplyAutoAll overwrites every document's reminder with the auto policy.
func ApplyAutoAll(docs []models.ExtractedDocument) {
	for i := range docs {
		docs[i].ReminderType = models.ReminderAuto
		if docs[i].ExpiryDate == nil {
			docs[i].ReminderDate = nil
			continue
		}
		date := ComputeAutoReminder(docs[i].DocumentType, *docs[i].ExpiryDate)
		docs[i].ReminderDate = &date
	}
}

// DaysUntil returns the whole days left until expiry, rounding partial days up.
func DaysUntil(expiry, now time.Time) int {
	diff := expiry.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// FormatRemainingTime renders the time left until expiry as years, months and days,
// using 365-day years and 30-day months.
func FormatRemainingTime(expiry *time.Time, now time.Time) string {
	if expiry == nil {
		return RemainingUnknown
	}
	days := DaysUntil(*expiry, now)
	if days <= 0 {
		return RemainingExpired
	}

	years := days / 365
	rest := days % 365
	months := rest / 30
	rest %= 30

	parts := make([]string, 0, 3)
	if years > 0 {
		parts = append(parts, fmt.Sprintf("%d tahun", years))
	}
	if months > 0 {
		parts = append(parts, fmt.Sprintf("%d bulan", months))
	}
	if rest > 0 {
		parts = append(parts, fmt.Sprintf("%d hari", rest))
	}
	return strings.Join(parts, " ")
}
