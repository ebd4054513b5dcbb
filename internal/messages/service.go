package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// ReviewCreator queues a draft for human review.
type ReviewCreator interface {
	CreateReview(ctx context.Context, item *models.ReviewItem) error
}

// GenerateResult reports a scheduled generation run. A failure on one draft
// does not abort the batch.
type GenerateResult struct {
	Success        bool   `json:"success"`
	CompanyID      string `json:"company_id"`
	Moment         Moment `json:"moment"`
	MessagesQueued int    `json:"messages_queued"`
	FailedMessages int    `json:"failed_messages"`
	AutoApproved   bool   `json:"auto_approved"`
	ErrorMessage   string `json:"error_message,omitempty"`

	// Drafts is populated only on the auto-approve path, where nothing is
	// written to the review queue and the caller delivers directly.
	Drafts []Draft `json:"-"`
}

// Service runs the scheduled generation flow: render drafts, then either
// queue them for review or hand them straight to delivery when review is off.
type Service struct {
	generator      *Generator
	reviews        ReviewCreator
	reviewRequired bool
	now            func() time.Time
}

func NewService(generator *Generator, reviews ReviewCreator, reviewRequired bool) *Service {
	return &Service{
		generator:      generator,
		reviews:        reviews,
		reviewRequired: reviewRequired,
		now:            time.Now,
	}
}

// GenerateScheduled renders drafts for every eligible seller and queues them
// for review. With review disabled, no review rows are written; the drafts
// come back in the result for direct delivery.
func (s *Service) GenerateScheduled(ctx context.Context, moment Moment, companyID string) (*GenerateResult, error) {
	result := &GenerateResult{CompanyID: companyID, Moment: moment}

	logger.Info("Generating scheduled messages",
		zap.String("company_id", companyID),
		zap.String("moment", moment.String()),
	)

	drafts, err := s.generator.GenerateAll(ctx, moment, companyID)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, fmt.Errorf("failed to generate drafts: %w", err)
	}

	if len(drafts) == 0 {
		logger.Warn("No message drafts generated", zap.String("company_id", companyID))
		return result, nil
	}

	if !s.reviewRequired {
		// No review gate: hand drafts straight back for delivery without
		// touching the review queue.
		result.AutoApproved = true
		result.MessagesQueued = len(drafts)
		result.Drafts = drafts
		result.Success = true

		logger.Info("Review disabled, drafts auto-approved",
			zap.String("company_id", companyID),
			zap.Int("count", len(drafts)),
		)
		metrics.MessagesQueued.WithLabelValues(moment.String()).Add(float64(len(drafts)))
		return result, nil
	}

	for _, draft := range drafts {
		item := &models.ReviewItem{
			ID:             uuid.NewString(),
			CompanyID:      companyID,
			Moment:         moment.String(),
			RecipientPhone: draft.PhoneE164,
			RecipientName:  draft.SellerName,
			DraftMessage:   draft.Message,
			Status:         models.ReviewStatusPending,
			CreatedAt:      s.now(),
		}

		if err := s.reviews.CreateReview(ctx, item); err != nil {
			logger.Error("Failed to queue message for review",
				zap.String("recipient", draft.SellerName),
				zap.String("phone", draft.PhoneE164),
				zap.Error(err),
			)
			result.FailedMessages++
			continue
		}
		result.MessagesQueued++
	}

	metrics.MessagesQueued.WithLabelValues(moment.String()).Add(float64(result.MessagesQueued))

	result.Success = result.MessagesQueued > 0
	logger.Info("Scheduled messages queued",
		zap.String("company_id", companyID),
		zap.Int("queued", result.MessagesQueued),
		zap.Int("failed", result.FailedMessages),
		zap.Bool("auto_approved", result.AutoApproved),
	)

	return result, nil
}
