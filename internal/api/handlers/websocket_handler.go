package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/review"
	"github.com/liaxp/backend/pkg/logger"
)

// WebSocketHandler streams review-queue events to connected reviewers so the
// approval UI updates without polling.
type WebSocketHandler struct {
	hub *review.Hub
}

func NewWebSocketHandler(hub *review.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Review feed connection established")

	events, cancel := h.hub.Subscribe()
	defer func() {
		cancel()
		c.Close()
		logger.Info("Review feed connection closed")
	}()

	// Reader loop only to detect the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				logger.Error("Failed to write review event", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
