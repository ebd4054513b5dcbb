package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/delivery"
	"github.com/liaxp/backend/internal/messages"
	"github.com/liaxp/backend/internal/storage/sqlite"
	"github.com/liaxp/backend/pkg/logger"
)

type MessagesHandler struct {
	service   *messages.Service
	deliverer *delivery.Orchestrator
	store     *sqlite.Client
}

func NewMessagesHandler(service *messages.Service, deliverer *delivery.Orchestrator, store *sqlite.Client) *MessagesHandler {
	return &MessagesHandler{
		service:   service,
		deliverer: deliverer,
		store:     store,
	}
}

// HandleGenerate runs the generation step for one moment, the same path the
// scheduler fires, exposed for manual triggering.
func (h *MessagesHandler) HandleGenerate(c *fiber.Ctx) error {
	var req struct {
		CompanyID string `json:"company_id"`
		Moment    string `json:"moment"`
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

	moment, err := messages.ParseMoment(req.Moment)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "moment must be one of: morning, midday, evening",
		})
	}

	result, err := h.service.GenerateScheduled(c.Context(), moment, req.CompanyID)
	if err != nil {
		logger.Error("Message generation failed",
			zap.String("company_id", req.CompanyID),
			zap.String("moment", req.Moment),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate messages",
		})
	}

	return c.JSON(result)
}

// HandleSend delivers all approved, unsent drafts for a tenant.
func (h *MessagesHandler) HandleSend(c *fiber.Ctx) error {
	var req struct {
		CompanyID string `json:"company_id"`
		Moment    string `json:"moment"`
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

	if req.Moment != "" {
		if _, err := messages.ParseMoment(req.Moment); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "moment must be one of: morning, midday, evening",
			})
		}
	}

	result, err := h.deliverer.SendApproved(c.Context(), req.CompanyID, req.Moment)
	if err != nil {
		logger.Error("Delivery run failed",
			zap.String("company_id", req.CompanyID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send messages",
		})
	}

	return c.JSON(result)
}

// HandleListLog returns recent delivery log rows for a tenant, newest first.
func (h *MessagesHandler) HandleListLog(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	entries, err := h.store.ListMessageLog(companyID, historyLimit(c))
	if err != nil {
		logger.Error("Failed to list message log",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load message log",
		})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}
