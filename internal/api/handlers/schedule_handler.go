package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/messages"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/internal/storage/sqlite"
	"github.com/liaxp/backend/pkg/logger"
)

// ScheduleHandler manages the persisted (tenant, moment, cron) rows the
// scheduler loads at startup. Changes take effect on the next restart.
type ScheduleHandler struct {
	store *sqlite.Client
}

func NewScheduleHandler(store *sqlite.Client) *ScheduleHandler {
	return &ScheduleHandler{store: store}
}

func (h *ScheduleHandler) UpsertSchedule(c *fiber.Ctx) error {
	var req struct {
		CompanyID string `json:"company_id"`
		Moment    string `json:"moment"`
		CronExpr  string `json:"cron_expr"`
		Enabled   bool   `json:"enabled"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CompanyID == "" || req.CronExpr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id and cron_expr are required",
		})
	}

	if _, err := messages.ParseMoment(req.Moment); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "moment must be one of: morning, midday, evening",
		})
	}

	schedule := &models.MessageSchedule{
		ID:        uuid.NewString(),
		CompanyID: req.CompanyID,
		Moment:    req.Moment,
		CronExpr:  req.CronExpr,
		Enabled:   req.Enabled,
	}

	if err := h.store.UpsertMessageSchedule(schedule); err != nil {
		logger.Error("Failed to save schedule", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save schedule",
		})
	}

	// On conflict the original row keeps its ID; return what is stored.
	stored, err := h.store.GetMessageSchedule(req.CompanyID, req.Moment)
	if err != nil || stored == nil {
		logger.Error("Failed to reload schedule", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save schedule",
		})
	}

	return c.JSON(stored)
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	schedules, err := h.store.ListEnabledSchedules()
	if err != nil {
		logger.Error("Failed to list schedules", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list schedules",
		})
	}

	return c.JSON(fiber.Map{
		"schedules": schedules,
		"count":     len(schedules),
	})
}
