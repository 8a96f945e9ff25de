package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dokumen-api/internal/dto"
	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/internal/service"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
	"github.com/noah-isme/dokumen-api/pkg/response"
)

type reminderCalculator interface {
	Options() []models.ReminderOption
	Compute(req dto.ComputeReminderRequest) (*dto.ComputeReminderResponse, error)
}

type reminderExporter interface {
	Schedule(ctx context.Context, userID string) ([]models.ReminderScheduleEntry, error)
	Export(ctx context.Context, userID, format string) (*service.ReminderExport, error)
}

type reminderSweeper interface {
	RunOnce(ctx context.Context, now time.Time) (*dto.ReminderSweepResult, error)
}

// ReminderHandler serves reminder options, schedules and exports.
type ReminderHandler struct {
	calculator reminderCalculator
	exporter   reminderExporter
	sweeper    reminderSweeper
}

// NewReminderHandler constructs the handler.
func NewReminderHandler(calculator reminderCalculator, exporter reminderExporter, sweeper reminderSweeper) *ReminderHandler {
	return &ReminderHandler{calculator: calculator, exporter: exporter, sweeper: sweeper}
}

// Options godoc
// @Summary Reminder picker options
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reminders/options [get]
func (h *ReminderHandler) Options(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.calculator.Options(), nil)
}

// Compute godoc
// @Summary Compute a reminder date
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body dto.ComputeReminderRequest true "Expiry and option"
// @Success 200 {object} response.Envelope
// @Router /reminders/compute [post]
func (h *ReminderHandler) Compute(c *gin.Context) {
	var req dto.ComputeReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reminder payload"))
		return
	}
	result, err := h.calculator.Compute(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Schedule godoc
// @Summary Reminder schedule of the current user
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reminders/schedule [get]
func (h *ReminderHandler) Schedule(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	entries, err := h.exporter.Schedule(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export the reminder schedule
// @Tags Reminders
// @Produce octet-stream
// @Param format query string false "csv|pdf|xlsx"
// @Success 200 {file} binary
// @Router /reminders/export [get]
func (h *ReminderHandler) Export(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	export, err := h.exporter.Export(c.Request.Context(), userID, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", export.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, export.ContentType, export.Content)
}

// RunSweep godoc
// @Summary Run the reminder sweep now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reminders/run [post]
func (h *ReminderHandler) RunSweep(c *gin.Context) {
	if h.sweeper == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "reminder sweep unavailable"))
		return
	}
	result, err := h.sweeper.RunOnce(c.Request.Context(), time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
