package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// UpsertImportStatus records a fresh dataset import. A changed file_hash is
// what makes TrainingNeeded flip to true; training fields are left untouched.
func (c *Client) UpsertImportStatus(companyID, fileHash string, importedAt time.Time) error {
	query := `
		INSERT INTO import_status (company_id, file_hash, imported_at)
		VALUES (?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			file_hash = excluded.file_hash,
			imported_at = excluded.imported_at
	`

	_, err := c.db.Exec(query, companyID, fileHash, importedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert import status: %w", err)
	}

	logger.Debug("Import status updated",
		zap.String("company_id", companyID),
		zap.String("file_hash", fileHash),
	)

	return nil
}

func (c *Client) GetTrainingStatus(companyID string) (*models.TrainingStatus, error) {
	query := `SELECT company_id, file_hash, imported_at, last_trained_hash, last_trained_at, is_stale
		FROM import_status WHERE company_id = ?`

	var status models.TrainingStatus
	var importedAt int64
	var lastHash sql.NullString
	var lastTrainedAt sql.NullInt64
	var isStale int

	err := c.db.QueryRow(query, companyID).Scan(
		&status.CompanyID,
		&status.FileHash,
		&importedAt,
		&lastHash,
		&lastTrainedAt,
		&isStale,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training status: %w", err)
	}

	status.ImportedAt = time.Unix(importedAt, 0)
	status.LastTrainedHash = lastHash.String
	if lastTrainedAt.Valid {
		t := time.Unix(lastTrainedAt.Int64, 0)
		status.LastTrainedAt = &t
	}
	status.IsStale = isStale == 1

	return &status, nil
}

// MarkTrained stamps a successful training run and clears the stale flag.
func (c *Client) MarkTrained(companyID, fileHash string, trainedAt time.Time) error {
	query := `
		UPDATE import_status
		SET last_trained_hash = ?, last_trained_at = ?, is_stale = 0
		WHERE company_id = ?
	`

	result, err := c.db.Exec(query, fileHash, trainedAt.Unix(), companyID)
	if err != nil {
		return fmt.Errorf("failed to mark trained: %w", err)
	}

	affected, _ := result.RowsAffected()
	logger.Debug("Training status updated",
		zap.String("company_id", companyID),
		zap.String("file_hash", fileHash),
		zap.Int64("rows", affected),
	)

	return nil
}

// MarkStale flags cached insights as outdated without touching hashes.
// There is no internal writer; operators or a TTL sweep call this.
func (c *Client) MarkStale(companyID string) error {
	query := `UPDATE import_status SET is_stale = 1 WHERE company_id = ?`

	_, err := c.db.Exec(query, companyID)
	if err != nil {
		return fmt.Errorf("failed to mark stale: %w", err)
	}

	return nil
}

// InsertInsightSnapshot appends a snapshot row. Old rows for the same key are
// kept for audit; readers select the newest.
func (c *Client) InsertInsightSnapshot(snapshot *models.InsightSnapshot) error {
	query := `
		INSERT INTO insight_cache (id, company_id, store_id, seller_id, insight_date, insight_type, data_json, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		snapshot.ID,
		snapshot.CompanyID,
		nullable(snapshot.StoreID),
		nullable(snapshot.SellerID),
		snapshot.InsightDate.Unix(),
		snapshot.InsightType,
		snapshot.DataJSON,
		snapshot.CachedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert insight snapshot: %w", err)
	}

	return nil
}

// GetLatestInsightSnapshot returns the newest snapshot for the given key, or
// nil when the tenant was never trained for that scope.
func (c *Client) GetLatestInsightSnapshot(companyID, storeID, sellerID string) (*models.InsightSnapshot, error) {
	query := `SELECT id, company_id, store_id, seller_id, insight_date, insight_type, data_json, cached_at
		FROM insight_cache
		WHERE company_id = ? AND store_id IS ? AND seller_id IS ?
		ORDER BY cached_at DESC, id DESC
		LIMIT 1`

	var s models.InsightSnapshot
	var store, seller sql.NullString
	var insightDate, cachedAt int64

	err := c.db.QueryRow(query, companyID, nullable(storeID), nullable(sellerID)).Scan(
		&s.ID,
		&s.CompanyID,
		&store,
		&seller,
		&insightDate,
		&s.InsightType,
		&s.DataJSON,
		&cachedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insight snapshot: %w", err)
	}

	s.StoreID = store.String
	s.SellerID = seller.String
	s.InsightDate = time.Unix(insightDate, 0)
	s.CachedAt = time.Unix(cachedAt, 0)

	return &s, nil
}

// PruneInsightSnapshots removes superseded rows older than the cutoff.
func (c *Client) PruneInsightSnapshots(companyID string, before time.Time) (int64, error) {
	query := `DELETE FROM insight_cache WHERE company_id = ? AND cached_at < ?`

	result, err := c.db.Exec(query, companyID, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune insight snapshots: %w", err)
	}

	return result.RowsAffected()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
