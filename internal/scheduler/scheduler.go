package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/delivery"
	"github.com/liaxp/backend/internal/messages"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// ScheduleSource loads the persisted (tenant, moment, cron) rows.
type ScheduleSource interface {
	ListEnabledSchedules() ([]models.MessageSchedule, error)
}

// Generator runs the draft generation step.
type Generator interface {
	GenerateScheduled(ctx context.Context, moment messages.Moment, companyID string) (*messages.GenerateResult, error)
}

// Sender delivers auto-approved drafts that bypassed the review queue.
type Sender interface {
	SendDrafts(ctx context.Context, companyID string, drafts []messages.Draft) (*delivery.Result, error)
}

// Digest mails the outcome of a run; optional.
type Digest interface {
	SendRunDigest(to, companyID, moment string, sent, failed int) error
}

// Scheduler fires the generate→(review)→deliver sequence per (tenant, moment)
// on cron schedules loaded from storage. A (tenant, moment) pair never runs
// concurrently with itself; overlapping fires are skipped, not queued.
type Scheduler struct {
	schedules ScheduleSource
	generator Generator
	sender    Sender
	digest    Digest
	digestTo  string

	cron *cron.Cron

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(schedules ScheduleSource, generator Generator, sender Sender, digest Digest, digestTo string) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		generator: generator,
		sender:    sender,
		digest:    digest,
		digestTo:  digestTo,
		cron:      cron.New(),
		inFlight:  make(map[string]bool),
	}
}

// Start registers every enabled schedule and begins firing. Bad cron
// expressions or moment names are a configuration error and fail startup.
func (s *Scheduler) Start() error {
	rows, err := s.schedules.ListEnabledSchedules()
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	for _, row := range rows {
		moment, err := messages.ParseMoment(row.Moment)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", row.ID, err)
		}

		companyID := row.CompanyID
		_, err = s.cron.AddFunc(row.CronExpr, func() {
			if err := s.Execute(context.Background(), moment, companyID); err != nil {
				logger.Error("Scheduled job failed",
					zap.String("company_id", companyID),
					zap.String("moment", moment.String()),
					zap.Error(err),
				)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s: invalid cron expression %q: %w", row.ID, row.CronExpr, err)
		}

		logger.Info("Schedule registered",
			zap.String("company_id", companyID),
			zap.String("moment", moment.String()),
			zap.String("cron", row.CronExpr),
		)
	}

	s.cron.Start()
	logger.Info("Scheduler started", zap.Int("schedules", len(rows)))
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Scheduler stopped")
}

// Execute runs one (tenant, moment) trigger: generate drafts, and when they
// were auto-approved, deliver them immediately. Re-entry for the same pair
// while a run is in flight is rejected.
func (s *Scheduler) Execute(ctx context.Context, moment messages.Moment, companyID string) error {
	key := companyID + ":" + moment.String()

	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		metrics.ScheduledJobs.WithLabelValues(moment.String(), "skipped_inflight").Inc()
		logger.Warn("Trigger already running, skipping",
			zap.String("company_id", companyID),
			zap.String("moment", moment.String()),
		)
		return fmt.Errorf("trigger %s already running", key)
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	started := time.Now()
	logger.Info("Scheduled trigger fired",
		zap.String("company_id", companyID),
		zap.String("moment", moment.String()),
	)

	genResult, err := s.generator.GenerateScheduled(ctx, moment, companyID)
	if err != nil {
		metrics.ScheduledJobs.WithLabelValues(moment.String(), "failed").Inc()
		return fmt.Errorf("generation step failed: %w", err)
	}

	sent, failed := 0, 0
	if genResult.AutoApproved && len(genResult.Drafts) > 0 {
		sendResult, err := s.sender.SendDrafts(ctx, companyID, genResult.Drafts)
		if sendResult != nil {
			sent = sendResult.MessagesSent
			failed = sendResult.MessagesFailed
		}
		if err != nil {
			metrics.ScheduledJobs.WithLabelValues(moment.String(), "failed").Inc()
			return fmt.Errorf("delivery step failed: %w", err)
		}
	}

	if s.digest != nil && s.digestTo != "" {
		if err := s.digest.SendRunDigest(s.digestTo, companyID, moment.String(), sent, failed); err != nil {
			logger.Warn("Failed to send run digest", zap.Error(err))
		}
	}

	metrics.ScheduledJobs.WithLabelValues(moment.String(), "success").Inc()
	logger.Info("Scheduled trigger finished",
		zap.String("company_id", companyID),
		zap.String("moment", moment.String()),
		zap.Int("queued", genResult.MessagesQueued),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(started)),
	)

	return nil
}
