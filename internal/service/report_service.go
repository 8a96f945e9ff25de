package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/export"
)

const reportDateLayout = "02-01-2006"

// Column headers of the reminder schedule export.
const (
	columnTitle     = "Judul"
	columnType      = "Jenis"
	columnExpiry    = "Tanggal Kadaluarsa"
	columnReminder  = "Tanggal Pengingat"
	columnRemaining = "Sisa Waktu"
)

type reminderSource interface {
	ListWithExpiry(ctx context.Context, userID string) ([]models.Document, error)
}

// ReminderExport is a rendered reminder schedule.
type ReminderExport struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ReportService renders a user's reminder schedule.
type ReportService struct {
	repo   reminderSource
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reminderSource, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, logger: logger, now: time.Now}
}

// Schedule lists every document of userID with an expiry date, soonest first.
func (s *ReportService) Schedule(ctx context.Context, userID string) ([]models.ReminderScheduleEntry, error) {
	docs, err := s.repo.ListWithExpiry(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reminder schedule")
	}
	now := s.now()
	entries := make([]models.ReminderScheduleEntry, 0, len(docs))
	for _, doc := range docs {
		entry := models.ReminderScheduleEntry{
			DocumentID:    doc.ID,
			Title:         doc.Title,
			Type:          doc.Type,
			ExpiryDate:    doc.ExpiryDate,
			ReminderDate:  doc.ReminderDate,
			RemainingTime: FormatRemainingTime(doc.ExpiryDate, now),
		}
		if doc.ReminderType != nil {
			entry.ReminderType = *doc.ReminderType
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Export renders the schedule as csv, pdf or xlsx.
func (s *ReportService) Export(ctx context.Context, userID, format string) (*ReminderExport, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	renderer, err := export.NewRenderer(parsed)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	entries, err := s.Schedule(ctx, userID)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:   "Jadwal Pengingat Dokumen",
		Headers: []string{columnTitle, columnType, columnExpiry, columnReminder, columnRemaining},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		data.Rows = append(data.Rows, map[string]string{
			columnTitle:     entry.Title,
			columnType:      string(entry.Type),
			columnExpiry:    formatReportDate(entry.ExpiryDate),
			columnReminder:  formatReportDate(entry.ReminderDate),
			columnRemaining: entry.RemainingTime,
		})
	}
	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render reminder schedule")
	}
	s.logger.Debug("reminder schedule exported", zap.String("user_id", userID), zap.String("format", string(parsed)), zap.Int("rows", len(entries)))
	return &ReminderExport{
		Filename:    fmt.Sprintf("jadwal-pengingat-%s.%s", s.now().UTC().Format("20060102"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

func formatReportDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(reportDateLayout)
}
