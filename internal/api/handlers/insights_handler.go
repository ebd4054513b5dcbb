package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/pkg/logger"
)

type InsightsHandler struct {
	engine *insights.Engine
}

func NewInsightsHandler(engine *insights.Engine) *InsightsHandler {
	return &InsightsHandler{engine: engine}
}

// GetInsights computes live insights for the requested scope. The cached
// snapshots behind scheduled messages are not consulted here.
func (h *InsightsHandler) GetInsights(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	storeID := c.Query("store_id")
	sellerID := c.Query("seller_id")

	result, err := h.engine.Calculate(companyID, storeID, sellerID, time.Now())
	if err != nil {
		logger.Error("Failed to calculate insights",
			zap.String("company_id", companyID),
			zap.String("seller_id", sellerID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to calculate insights",
		})
	}

	return c.JSON(result)
}
