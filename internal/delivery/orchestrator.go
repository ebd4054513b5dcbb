package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/messages"
	"github.com/liaxp/backend/internal/messaging"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// ReviewStore is the review-queue slice delivery needs: selecting sendable
// items and writing the terminal outcome back. The writeback is mandatory;
// without it a re-run of SendApproved would resend every item.
type ReviewStore interface {
	ListSendableReviewItems(companyID, moment string) ([]models.ReviewItem, error)
	MarkReviewDelivered(id, status, errorMessage string, at time.Time) error
}

// LogStore appends one delivery log row per attempt.
type LogStore interface {
	InsertMessageLog(entry *models.MessageLogEntry) error
}

// Result aggregates one delivery run. Errors collects items whose attempt
// could not be recorded; they stay sendable and a later run retries them.
type Result struct {
	CompanyID      string   `json:"company_id"`
	MessagesSent   int      `json:"messages_sent"`
	MessagesFailed int      `json:"messages_failed"`
	Errors         []string `json:"errors,omitempty"`
}

// Outcome reports a single item's delivery for synchronous approve-and-send.
type Outcome struct {
	Sent         bool
	ExternalID   string
	ErrorMessage string
}

// Orchestrator pushes approved drafts through the provider. One message's
// failure never stops the rest; every attempt leaves a log row and updates
// the review item.
type Orchestrator struct {
	reviews  ReviewStore
	log      LogStore
	provider messaging.Provider
	delay    time.Duration
	now      func() time.Time
}

func NewOrchestrator(reviews ReviewStore, log LogStore, provider messaging.Provider, delay time.Duration) *Orchestrator {
	return &Orchestrator{
		reviews:  reviews,
		log:      log,
		provider: provider,
		delay:    delay,
		now:      time.Now,
	}
}

// SendApproved delivers every Approved, not-yet-sent item for the tenant,
// optionally filtered by moment. Counters for completed items stand even
// when the context is cancelled mid-run.
func (o *Orchestrator) SendApproved(ctx context.Context, companyID, moment string) (*Result, error) {
	result := &Result{CompanyID: companyID}

	items, err := o.reviews.ListSendableReviewItems(companyID, moment)
	if err != nil {
		return nil, err
	}

	logger.Info("Starting delivery run",
		zap.String("company_id", companyID),
		zap.String("moment", moment),
		zap.Int("items", len(items)),
	)

	for i := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		outcome, err := o.DeliverReviewItem(ctx, &items[i])
		if err != nil {
			// Persistence failed for this item; the rest of the batch
			// still goes out.
			result.MessagesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", items[i].ID, err))
			logger.Error("Failed to record delivery attempt",
				zap.String("review_id", items[i].ID),
				zap.Error(err),
			)
			o.throttle(ctx)
			continue
		}
		if outcome.Sent {
			result.MessagesSent++
		} else {
			result.MessagesFailed++
		}

		o.throttle(ctx)
	}

	logger.Info("Delivery run finished",
		zap.String("company_id", companyID),
		zap.Int("sent", result.MessagesSent),
		zap.Int("failed", result.MessagesFailed),
	)

	return result, nil
}

// DeliverReviewItem sends one item, logs the attempt and writes the terminal
// status back onto the review row. Provider-level failures are an Outcome,
// not an error; errors mean the attempt could not be recorded.
func (o *Orchestrator) DeliverReviewItem(ctx context.Context, item *models.ReviewItem) (*Outcome, error) {
	body := item.MessageText()

	sendResult, err := o.provider.Send(ctx, item.RecipientPhone, body, item.CompanyID)
	if err != nil {
		sendResult = &messaging.SendResult{Success: false, Error: err.Error()}
	}

	now := o.now()
	outcome := &Outcome{Sent: sendResult.Success, ExternalID: sendResult.ExternalID, ErrorMessage: sendResult.Error}

	status := models.MessageStatusSent
	reviewStatus := models.ReviewStatusSent
	if !sendResult.Success {
		status = models.MessageStatusFailed
		reviewStatus = models.ReviewStatusFailed
		metrics.MessagesFailed.WithLabelValues(o.provider.ProviderName()).Inc()
		logger.Warn("Message delivery failed",
			zap.String("review_id", item.ID),
			zap.String("to", item.RecipientPhone),
			zap.String("error", sendResult.Error),
		)
	} else {
		metrics.MessagesSent.WithLabelValues(o.provider.ProviderName()).Inc()
	}

	entry := &models.MessageLogEntry{
		ID:           uuid.NewString(),
		CompanyID:    item.CompanyID,
		Direction:    models.DirectionOutbound,
		PhoneTo:      item.RecipientPhone,
		Message:      body,
		Provider:     o.provider.ProviderName(),
		ExternalID:   sendResult.ExternalID,
		Status:       status,
		SentAt:       now,
		ErrorMessage: sendResult.Error,
	}
	if err := o.log.InsertMessageLog(entry); err != nil {
		return nil, err
	}

	if err := o.reviews.MarkReviewDelivered(item.ID, reviewStatus, sendResult.Error, now); err != nil {
		return nil, err
	}

	return outcome, nil
}

// SendDrafts delivers auto-approved drafts that never entered the review
// queue. Attempts are logged but there is no review row to update.
func (o *Orchestrator) SendDrafts(ctx context.Context, companyID string, drafts []messages.Draft) (*Result, error) {
	result := &Result{CompanyID: companyID}

	for _, draft := range drafts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		sendResult, err := o.provider.Send(ctx, draft.PhoneE164, draft.Message, companyID)
		if err != nil {
			sendResult = &messaging.SendResult{Success: false, Error: err.Error()}
		}

		status := models.MessageStatusSent
		if sendResult.Success {
			result.MessagesSent++
			metrics.MessagesSent.WithLabelValues(o.provider.ProviderName()).Inc()
		} else {
			status = models.MessageStatusFailed
			result.MessagesFailed++
			metrics.MessagesFailed.WithLabelValues(o.provider.ProviderName()).Inc()
			logger.Warn("Draft delivery failed",
				zap.String("to", draft.PhoneE164),
				zap.String("error", sendResult.Error),
			)
		}

		entry := &models.MessageLogEntry{
			ID:           uuid.NewString(),
			CompanyID:    companyID,
			Direction:    models.DirectionOutbound,
			PhoneTo:      draft.PhoneE164,
			Message:      draft.Message,
			Provider:     o.provider.ProviderName(),
			ExternalID:   sendResult.ExternalID,
			Status:       status,
			SentAt:       o.now(),
			ErrorMessage: sendResult.Error,
		}
		if err := o.log.InsertMessageLog(entry); err != nil {
			return result, err
		}

		o.throttle(ctx)
	}

	return result, nil
}

// throttle spaces consecutive provider calls; zero delay disables it.
func (o *Orchestrator) throttle(ctx context.Context) {
	if o.delay <= 0 {
		return
	}
	select {
	case <-time.After(o.delay):
	case <-ctx.Done():
	}
}
