package training

import (
	"errors"
	"fmt"
	"time"

	"github.com/liaxp/backend/internal/storage/models"
)

// ErrNoImportData distinguishes "tenant never imported anything" from "cache
// is fresh". Reporting the former as not-stale would hide a condition the
// operator needs to see.
var ErrNoImportData = errors.New("no data imported for company")

// StatusStore is the import_status slice of storage.
type StatusStore interface {
	GetTrainingStatus(companyID string) (*models.TrainingStatus, error)
	MarkTrained(companyID, fileHash string, trainedAt time.Time) error
	MarkStale(companyID string) error
}

// Tracker answers staleness questions about a tenant's insight cache.
type Tracker struct {
	store StatusStore
}

func NewTracker(store StatusStore) *Tracker {
	return &Tracker{store: store}
}

// Status returns the tenant's training status, or ErrNoImportData when the
// tenant has no import_status row.
func (t *Tracker) Status(companyID string) (*models.TrainingStatus, error) {
	status, err := t.store.GetTrainingStatus(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load training status: %w", err)
	}
	if status == nil {
		return nil, ErrNoImportData
	}
	return status, nil
}

// IsTrainingNeeded reports whether cached insights lag the imported dataset.
func (t *Tracker) IsTrainingNeeded(companyID string) (bool, error) {
	status, err := t.Status(companyID)
	if err != nil {
		return false, err
	}
	return status.TrainingNeeded(), nil
}

// MarkStale flags a tenant's cache as outdated, forcing the next Train run.
func (t *Tracker) MarkStale(companyID string) error {
	return t.store.MarkStale(companyID)
}

// MarkTrained records that the cache now reflects fileHash.
func (t *Tracker) MarkTrained(companyID, fileHash string, trainedAt time.Time) error {
	return t.store.MarkTrained(companyID, fileHash, trainedAt)
}
