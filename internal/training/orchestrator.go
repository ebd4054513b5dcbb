package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/metrics"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

const (
	SnapshotTypeSeller  = "seller"
	SnapshotTypeCompany = "company"

	// Sellers with no sales in this many months are not retrained.
	activeWindowMonths = 3
)

// InsightCalculator is implemented by the insights engine.
type InsightCalculator interface {
	Calculate(companyID, storeID, sellerID string, asOf time.Time) (*insights.Result, error)
}

// SnapshotStore is the insight_cache slice of storage.
type SnapshotStore interface {
	InsertInsightSnapshot(snapshot *models.InsightSnapshot) error
	GetSalesByCompany(companyID string, start, end time.Time) ([]models.Sale, error)
	PruneInsightSnapshots(companyID string, before time.Time) (int64, error)
}

// HotCache mirrors the newest snapshot per key into a fast store. Optional;
// sqlite stays authoritative.
type HotCache interface {
	SetInsights(ctx context.Context, companyID, storeID, sellerID string, result *insights.Result) error
}

// Result is a partial-success payload: counts plus an error list, so callers
// decide severity instead of getting all-or-nothing failure.
type Result struct {
	Success             bool      `json:"success"`
	CompanyID           string    `json:"company_id"`
	Skipped             bool      `json:"skipped"`
	Message             string    `json:"message"`
	SellersProcessed    int       `json:"sellers_processed"`
	InsightsGenerated   int       `json:"insights_generated"`
	CacheEntriesCreated int       `json:"cache_entries_created"`
	DurationSeconds     float64   `json:"duration_seconds"`
	Errors              []string  `json:"errors"`
	TrainedAt           time.Time `json:"trained_at"`
}

// Orchestrator drives the insights engine over every active seller of a
// tenant and owns all writes to the insight cache.
type Orchestrator struct {
	tracker   *Tracker
	engine    InsightCalculator
	store     SnapshotStore
	hotCache  HotCache
	retention time.Duration
	now       func() time.Time
}

func NewOrchestrator(tracker *Tracker, engine InsightCalculator, store SnapshotStore, hotCache HotCache, retention time.Duration) *Orchestrator {
	return &Orchestrator{
		tracker:   tracker,
		engine:    engine,
		store:     store,
		hotCache:  hotCache,
		retention: retention,
		now:       time.Now,
	}
}

// Train recomputes and caches insights for companyID. Without force it
// short-circuits when the dataset hash has not changed since the last run.
// A failure on one seller is recorded and the loop continues; one bad seller
// must not block the rest.
func (o *Orchestrator) Train(ctx context.Context, companyID string, force bool) (*Result, error) {
	started := o.now()
	result := &Result{CompanyID: companyID, TrainedAt: started}

	status, err := o.tracker.Status(companyID)
	if err != nil {
		if errors.Is(err, ErrNoImportData) {
			result.Message = "no import data found for company"
			result.Errors = append(result.Errors, "company has not imported any data yet")
			metrics.TrainingRuns.WithLabelValues("no_data").Inc()
			return result, nil
		}
		return nil, err
	}

	if !force && !status.TrainingNeeded() {
		result.Success = true
		result.Skipped = true
		result.Message = "training skipped - data unchanged since last run"
		result.DurationSeconds = o.now().Sub(started).Seconds()
		metrics.TrainingRuns.WithLabelValues("skipped").Inc()

		logger.Info("Training skipped, no changes",
			zap.String("company_id", companyID),
			zap.String("file_hash", status.FileHash),
		)
		return result, nil
	}

	logger.Info("Starting model training",
		zap.String("company_id", companyID),
		zap.Bool("force", force),
	)

	sellerIDs, err := o.activeSellers(companyID, started)
	if err != nil {
		return nil, err
	}

	logger.Info("Found sellers to process",
		zap.String("company_id", companyID),
		zap.Int("seller_count", len(sellerIDs)),
	)

	for _, sellerID := range sellerIDs {
		if ctx.Err() != nil {
			result.Message = "training cancelled"
			result.DurationSeconds = o.now().Sub(started).Seconds()
			metrics.TrainingRuns.WithLabelValues("cancelled").Inc()
			return result, ctx.Err()
		}

		if err := o.trainSeller(ctx, companyID, sellerID, started); err != nil {
			logger.Error("Failed to process seller",
				zap.String("company_id", companyID),
				zap.String("seller_id", sellerID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to process seller %s: %v", sellerID, err))
			continue
		}

		result.SellersProcessed++
		result.InsightsGenerated++
		result.CacheEntriesCreated++
	}

	if err := o.trainCompany(ctx, companyID, started); err != nil {
		logger.Error("Failed to process company insights",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		result.Errors = append(result.Errors, fmt.Sprintf("failed to process company insights: %v", err))
	} else {
		result.InsightsGenerated++
		result.CacheEntriesCreated++
	}

	if err := o.tracker.MarkTrained(companyID, status.FileHash, o.now()); err != nil {
		return nil, fmt.Errorf("failed to update training status: %w", err)
	}

	if o.retention > 0 {
		pruned, err := o.store.PruneInsightSnapshots(companyID, o.now().Add(-o.retention))
		if err != nil {
			// The cache only grows; next run retries the sweep.
			logger.Warn("Failed to prune old snapshots",
				zap.String("company_id", companyID),
				zap.Error(err),
			)
		} else if pruned > 0 {
			logger.Info("Pruned superseded snapshots",
				zap.String("company_id", companyID),
				zap.Int64("rows", pruned),
			)
		}
	}

	result.DurationSeconds = o.now().Sub(started).Seconds()
	result.Success = len(result.Errors) == 0
	if result.Success {
		result.Message = fmt.Sprintf("training completed in %.2fs", result.DurationSeconds)
		metrics.TrainingRuns.WithLabelValues("success").Inc()
	} else {
		result.Message = fmt.Sprintf("training completed with %d errors", len(result.Errors))
		metrics.TrainingRuns.WithLabelValues("partial").Inc()
	}
	metrics.TrainingDuration.Observe(result.DurationSeconds)
	metrics.InsightsGenerated.Add(float64(result.InsightsGenerated))

	logger.Info("Training completed",
		zap.String("company_id", companyID),
		zap.Int("sellers", result.SellersProcessed),
		zap.Int("insights", result.InsightsGenerated),
		zap.Float64("duration_seconds", result.DurationSeconds),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// activeSellers returns distinct sellers with sales in the active window,
// preserving first-seen order.
func (o *Orchestrator) activeSellers(companyID string, asOf time.Time) ([]string, error) {
	sales, err := o.store.GetSalesByCompany(companyID, asOf.AddDate(0, -activeWindowMonths, 0), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sellers: %w", err)
	}

	seen := map[string]bool{}
	var ids []string
	for _, s := range sales {
		if !seen[s.SellerID] {
			seen[s.SellerID] = true
			ids = append(ids, s.SellerID)
		}
	}

	return ids, nil
}

func (o *Orchestrator) trainSeller(ctx context.Context, companyID, sellerID string, asOf time.Time) error {
	result, err := o.engine.Calculate(companyID, "", sellerID, asOf)
	if err != nil {
		return err
	}
	return o.cacheSnapshot(ctx, companyID, "", sellerID, SnapshotTypeSeller, result, asOf)
}

func (o *Orchestrator) trainCompany(ctx context.Context, companyID string, asOf time.Time) error {
	result, err := o.engine.Calculate(companyID, "", "", asOf)
	if err != nil {
		return err
	}
	return o.cacheSnapshot(ctx, companyID, "", "", SnapshotTypeCompany, result, asOf)
}

func (o *Orchestrator) cacheSnapshot(ctx context.Context, companyID, storeID, sellerID, snapshotType string, result *insights.Result, asOf time.Time) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal insights: %w", err)
	}

	snapshot := &models.InsightSnapshot{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		StoreID:     storeID,
		SellerID:    sellerID,
		InsightDate: asOf,
		InsightType: snapshotType,
		DataJSON:    string(data),
		CachedAt:    o.now(),
	}

	if err := o.store.InsertInsightSnapshot(snapshot); err != nil {
		return err
	}

	if o.hotCache != nil {
		if err := o.hotCache.SetInsights(ctx, companyID, storeID, sellerID, result); err != nil {
			// The hot cache is best effort; sqlite already has the row.
			logger.Warn("Failed to update hot cache", zap.Error(err))
		}
	}

	return nil
}
