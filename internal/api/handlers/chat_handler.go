package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/storage/sqlite"
	"github.com/liaxp/backend/pkg/logger"
)

const maxHistoryLimit = 200

// ChatHandler exposes the conversation audit trail written by the chat router.
type ChatHandler struct {
	store *sqlite.Client
}

func NewChatHandler(store *sqlite.Client) *ChatHandler {
	return &ChatHandler{store: store}
}

// GetHistory returns the chat transcript for one seller, newest first. The
// seller can be addressed by phone or by ID.
func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	companyID := c.Query("company_id")
	if companyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_id is required",
		})
	}

	phone := c.Query("phone_e164")
	if sellerID := c.Query("seller_id"); phone == "" && sellerID != "" {
		seller, err := h.store.GetSellerByID(sellerID)
		if err != nil {
			logger.Error("Failed to resolve seller", zap.String("seller_id", sellerID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load chat history",
			})
		}
		if seller == nil || seller.PhoneE164 == "" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Seller not found or has no phone",
			})
		}
		phone = seller.PhoneE164
	}
	if phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone_e164 or seller_id is required",
		})
	}

	messages, err := h.store.ListChatHistory(companyID, phone, historyLimit(c))
	if err != nil {
		logger.Error("Failed to list chat history",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

func historyLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit
}
