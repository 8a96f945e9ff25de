package service

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

// ReminderCalculator serves reminder computations to the API.
type ReminderCalculator struct {
	validator *validator.Validate
	now       func() time.Time
}

// NewReminderCalculator constructs the calculator.
func NewReminderCalculator(validate *validator.Validate) *ReminderCalculator {
	if validate == nil {
		validate = validator.New()
	}
	return &ReminderCalculator{validator: validate, now: time.Now}
}

// Options returns the reminder picker entries.
func (r *ReminderCalculator) Options() []models.ReminderOption {
	return ReminderOptions()
}

// Compute derives the reminder date for an expiry date under the requested option.
func (r *ReminderCalculator) Compute(req dto.ComputeReminderRequest) (*dto.ComputeReminderResponse, error) {
	if err := r.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reminder payload")
	}
	docType := models.DocumentTypeOther
	if req.DocumentType != "" {
		parsed, ok := models.ParseDocumentType(req.DocumentType)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document type")
		}
		docType = parsed
	}
	now := r.now()
	date, err := ComputeReminderDate(req.ExpiryDate, req.ReminderType, docType, req.CustomDate, now)
	if err != nil {
		return nil, err
	}
	expiry := req.ExpiryDate
	return &dto.ComputeReminderResponse{
		ReminderType:  req.ReminderType,
		ReminderDate:  date,
		RemainingTime: FormatRemainingTime(&expiry, now),
	}, nil
}
