package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/delivery"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// ErrInvalidState is returned when a transition is attempted on an item not
// in the required source state. The item is left untouched.
var ErrInvalidState = errors.New("review item is not in the required state")

// ErrNotFound is returned when the review item does not exist.
var ErrNotFound = errors.New("review item not found")

// Store is the review-queue slice of storage. TransitionReviewItem guards on
// the source status and reports whether the row actually moved.
type Store interface {
	InsertReviewItem(item *models.ReviewItem) error
	GetReviewItem(id string) (*models.ReviewItem, error)
	ListReviewItemsByStatus(companyID, status string) ([]models.ReviewItem, error)
	TransitionReviewItem(id, fromStatus, toStatus, reviewedBy, errorMessage string, at time.Time) (bool, error)
	SetReviewEditedMessage(id, editedMessage string) (bool, error)
}

// Deliverer sends one approved item synchronously.
type Deliverer interface {
	DeliverReviewItem(ctx context.Context, item *models.ReviewItem) (*delivery.Outcome, error)
}

// Service owns the review-queue state machine:
// Pending → Approved → Sent, Pending → Rejected, Approved → Failed.
type Service struct {
	store         Store
	deliverer     Deliverer
	hub           *Hub
	sendOnApprove bool
	now           func() time.Time
}

func NewService(store Store, deliverer Deliverer, hub *Hub, sendOnApprove bool) *Service {
	return &Service{
		store:         store,
		deliverer:     deliverer,
		hub:           hub,
		sendOnApprove: sendOnApprove,
		now:           time.Now,
	}
}

// CreateReview inserts a Pending item. A persistence failure propagates so
// the caller counts it separately from queued drafts.
func (s *Service) CreateReview(ctx context.Context, item *models.ReviewItem) error {
	if item.Status == "" {
		item.Status = models.ReviewStatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}

	if err := s.store.InsertReviewItem(item); err != nil {
		return fmt.Errorf("failed to create review item: %w", err)
	}

	metrics.ReviewTransitions.WithLabelValues(models.ReviewStatusPending).Inc()
	s.publish(EventCreated, item.ID)
	return nil
}

// ApproveAndSend moves a Pending item to Approved and, under the immediate
// send policy, delivers it right away. The final status then reflects the
// delivery outcome.
func (s *Service) ApproveAndSend(ctx context.Context, id, reviewer string) (*models.ReviewItem, error) {
	return s.approve(ctx, id, "", reviewer)
}

// EditAndApprove replaces the draft text before approving. Edits are only
// accepted while the item is still Pending.
func (s *Service) EditAndApprove(ctx context.Context, id, newText, reviewer string) (*models.ReviewItem, error) {
	if newText == "" {
		return nil, fmt.Errorf("edited message must not be empty")
	}
	return s.approve(ctx, id, newText, reviewer)
}

func (s *Service) approve(ctx context.Context, id, newText, reviewer string) (*models.ReviewItem, error) {
	if newText != "" {
		ok, err := s.store.SetReviewEditedMessage(id, newText)
		if err != nil {
			return nil, fmt.Errorf("failed to save edited message: %w", err)
		}
		if !ok {
			return nil, ErrInvalidState
		}
	}

	ok, err := s.store.TransitionReviewItem(id, models.ReviewStatusPending, models.ReviewStatusApproved, reviewer, "", s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to approve review item: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	metrics.ReviewTransitions.WithLabelValues(models.ReviewStatusApproved).Inc()
	s.publish(EventApproved, id)

	logger.Info("Review item approved",
		zap.String("review_id", id),
		zap.String("reviewer", reviewer),
		zap.Bool("edited", newText != ""),
	)

	if s.sendOnApprove && s.deliverer != nil {
		item, err := s.get(id)
		if err != nil {
			return nil, err
		}

		outcome, err := s.deliverer.DeliverReviewItem(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("failed to deliver approved item: %w", err)
		}

		if outcome.Sent {
			metrics.ReviewTransitions.WithLabelValues(models.ReviewStatusSent).Inc()
			s.publish(EventSent, id)
		} else {
			metrics.ReviewTransitions.WithLabelValues(models.ReviewStatusFailed).Inc()
			s.publish(EventFailed, id)
		}
	}

	return s.get(id)
}

// Reject terminally refuses a Pending item.
func (s *Service) Reject(ctx context.Context, id, reviewer, reason string) (*models.ReviewItem, error) {
	ok, err := s.store.TransitionReviewItem(id, models.ReviewStatusPending, models.ReviewStatusRejected, reviewer, reason, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to reject review item: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}

	metrics.ReviewTransitions.WithLabelValues(models.ReviewStatusRejected).Inc()
	s.publish(EventRejected, id)

	logger.Info("Review item rejected",
		zap.String("review_id", id),
		zap.String("reviewer", reviewer),
		zap.String("reason", reason),
	)

	return s.get(id)
}

// ListPending returns items awaiting review for a tenant.
func (s *Service) ListPending(companyID string) ([]models.ReviewItem, error) {
	return s.store.ListReviewItemsByStatus(companyID, models.ReviewStatusPending)
}

// ListByStatus returns a tenant's items in the given status.
func (s *Service) ListByStatus(companyID, status string) ([]models.ReviewItem, error) {
	return s.store.ListReviewItemsByStatus(companyID, status)
}

// Get returns one item or ErrNotFound.
func (s *Service) Get(id string) (*models.ReviewItem, error) {
	return s.get(id)
}

func (s *Service) get(id string) (*models.ReviewItem, error) {
	item, err := s.store.GetReviewItem(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load review item: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *Service) publish(eventType, id string) {
	if s.hub == nil {
		return
	}
	item, err := s.store.GetReviewItem(id)
	if err != nil || item == nil {
		return
	}
	s.hub.Publish(Event{Type: eventType, Item: *item})
}
