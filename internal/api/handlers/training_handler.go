package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/training"
	"github.com/liaxp/backend/pkg/logger"
)

type TrainingHandler struct {
	orchestrator *training.Orchestrator
	tracker      *training.Tracker
}

func NewTrainingHandler(orchestrator *training.Orchestrator, tracker *training.Tracker) *TrainingHandler {
	return &TrainingHandler{
		orchestrator: orchestrator,
		tracker:      tracker,
	}
}

func (h *TrainingHandler) HandleTrain(c *fiber.Ctx) error {
	var req struct {
		CompanyID string `json:"company_id"`
		Force     bool   `json:"force"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	result, err := h.orchestrator.Train(c.Context(), req.CompanyID, req.Force)
	if err != nil {
		logger.Error("Training run failed", zap.String("company_id", req.CompanyID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run training",
		})
	}

	return c.JSON(result)
}

func (h *TrainingHandler) GetStatus(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	status, err := h.tracker.Status(companyID)
	if err != nil {
		if errors.Is(err, training.ErrNoImportData) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No data imported for company",
			})
		}
		logger.Error("Failed to load training status", zap.String("company_id", companyID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load training status",
		})
	}

	return c.JSON(fiber.Map{
		"company_id":        status.CompanyID,
		"file_hash":         status.FileHash,
		"imported_at":       status.ImportedAt,
		"last_trained_hash": status.LastTrainedHash,
		"last_trained_at":   status.LastTrainedAt,
		"is_stale":          status.IsStale,
		"training_needed":   status.TrainingNeeded(),
	})
}
