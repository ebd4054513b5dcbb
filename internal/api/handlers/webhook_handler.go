package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/chat"
	"github.com/liaxp/backend/internal/messaging"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// StatusStore correlates provider delivery receipts back to log rows.
type StatusStore interface {
	UpdateMessageLogStatus(externalID, status string) (bool, error)
}

// WebhookHandler receives provider callbacks: inbound seller messages and
// delivery status receipts.
type WebhookHandler struct {
	router      *chat.Router
	provider    messaging.Provider
	statuses    StatusStore
	verifyToken string
}

func NewWebhookHandler(router *chat.Router, provider messaging.Provider, statuses StatusStore, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		router:      router,
		provider:    provider,
		statuses:    statuses,
		verifyToken: verifyToken,
	}
}

// VerifyWebhook answers Meta's subscription handshake.
func (h *WebhookHandler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && h.verifyToken != "" {
		logger.Info("Webhook verified")
		return c.SendString(challenge)
	}

	return c.SendStatus(fiber.StatusForbidden)
}

// Meta webhook payload, trimmed to the fields the pipeline consumes.
type metaWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ReceiveMessage handles inbound messages and delivery receipts for one
// tenant. Receipts only flip log rows; a failed receipt for an unknown id is
// logged and skipped.
func (h *WebhookHandler) ReceiveMessage(c *fiber.Ctx) error {
	companyID := c.Params("companyID")
	if companyID == "" {
		metrics.WebhookRequests.WithLabelValues("whatsapp", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company id is required",
		})
	}

	body := c.Body()
	if !h.provider.ValidateWebhook(c.Get("X-Hub-Signature-256"), body) {
		metrics.WebhookRequests.WithLabelValues("whatsapp", "invalid_signature").Inc()
		logger.Warn("Webhook signature validation failed", zap.String("company_id", companyID))
		return c.SendStatus(fiber.StatusForbidden)
	}

	var payload metaWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		metrics.WebhookRequests.WithLabelValues("whatsapp", "bad_request").Inc()
		logger.Error("Failed to parse webhook payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid payload",
		})
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				phone := "+" + msg.From
				if _, err := h.router.HandleInbound(c.Context(), companyID, phone, msg.Text.Body); err != nil {
					logger.Error("Failed to handle inbound message",
						zap.String("company_id", companyID),
						zap.String("from", phone),
						zap.Error(err),
					)
				}
			}

			for _, status := range change.Value.Statuses {
				updated, err := h.statuses.UpdateMessageLogStatus(status.ID, mapReceiptStatus(status.Status))
				if err != nil {
					logger.Error("Failed to update delivery status",
						zap.String("external_id", status.ID),
						zap.Error(err),
					)
					continue
				}
				if !updated {
					logger.Warn("Delivery receipt for unknown message", zap.String("external_id", status.ID))
				}
			}
		}
	}

	metrics.WebhookRequests.WithLabelValues("whatsapp", "ok").Inc()
	return c.SendStatus(fiber.StatusOK)
}

func mapReceiptStatus(providerStatus string) string {
	switch providerStatus {
	case "failed", "undelivered":
		return models.MessageStatusFailed
	case "delivered":
		return models.MessageStatusDelivered
	case "read":
		return models.MessageStatusRead
	default:
		return models.MessageStatusSent
	}
}
