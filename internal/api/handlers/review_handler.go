package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/review"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

type ReviewHandler struct {
	service *review.Service
}

func NewReviewHandler(service *review.Service) *ReviewHandler {
	return &ReviewHandler{service: service}
}

func (h *ReviewHandler) ListReviews(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	status := c.Query("status", models.ReviewStatusPending)

	items, err := h.service.ListByStatus(companyID, status)
	if err != nil {
		logger.Error("Failed to list review items", zap.String("company_id", companyID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list review items",
		})
	}

	return c.JSON(fiber.Map{
		"items": items,
		"count": len(items),
	})
}

func (h *ReviewHandler) GetReview(c *fiber.Ctx) error {
	item, err := h.service.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, review.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Review item not found",
			})
		}
		logger.Error("Failed to load review item", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load review item",
		})
	}

	return c.JSON(item)
}

func (h *ReviewHandler) ApproveReview(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Reviewer string `json:"reviewer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Reviewer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reviewer is required",
		})
	}

	item, err := h.service.ApproveAndSend(c.Context(), id, req.Reviewer)
	if err != nil {
		return h.transitionError(c, id, err)
	}

	return c.JSON(item)
}

func (h *ReviewHandler) EditReview(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Reviewer string `json:"reviewer"`
		Message  string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Reviewer == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reviewer and message are required",
		})
	}

	item, err := h.service.EditAndApprove(c.Context(), id, req.Message, req.Reviewer)
	if err != nil {
		return h.transitionError(c, id, err)
	}

	return c.JSON(item)
}

func (h *ReviewHandler) RejectReview(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Reviewer string `json:"reviewer"`
		Reason   string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Reviewer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reviewer is required",
		})
	}

	item, err := h.service.Reject(c.Context(), id, req.Reviewer, req.Reason)
	if err != nil {
		return h.transitionError(c, id, err)
	}

	return c.JSON(item)
}

func (h *ReviewHandler) transitionError(c *fiber.Ctx, id string, err error) error {
	switch {
	case errors.Is(err, review.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Review item is not pending",
		})
	case errors.Is(err, review.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Review item not found",
		})
	default:
		logger.Error("Review transition failed", zap.String("review_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update review item",
		})
	}
}
