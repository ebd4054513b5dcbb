package review

import (
	"sync"

	"github.com/liaxp/backend/internal/storage/models"
)

const (
	EventCreated  = "review.created"
	EventApproved = "review.approved"
	EventRejected = "review.rejected"
	EventSent     = "review.sent"
	EventFailed   = "review.failed"
)

// Event is pushed to live review-queue subscribers (the websocket feed).
type Event struct {
	Type string            `json:"type"`
	Item models.ReviewItem `json:"item"`
}

// Hub fans review events out to subscribers. Slow subscribers drop events
// rather than block the review path.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered event channel and its cancel function.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
