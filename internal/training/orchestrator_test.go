package training

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/storage/models"
)

type fakeStatusStore struct {
	status       *models.TrainingStatus
	trainedHash  string
	trainedCalls int
	staleCalls   int
}

func (f *fakeStatusStore) GetTrainingStatus(companyID string) (*models.TrainingStatus, error) {
	return f.status, nil
}

func (f *fakeStatusStore) MarkTrained(companyID, fileHash string, trainedAt time.Time) error {
	f.trainedHash = fileHash
	f.trainedCalls++
	if f.status != nil {
		f.status.LastTrainedHash = fileHash
		f.status.LastTrainedAt = &trainedAt
		f.status.IsStale = false
	}
	return nil
}

func (f *fakeStatusStore) MarkStale(companyID string) error {
	f.staleCalls++
	return nil
}

type fakeCalculator struct {
	failFor map[string]bool
	calls   []string
}

func (f *fakeCalculator) Calculate(companyID, storeID, sellerID string, asOf time.Time) (*insights.Result, error) {
	key := sellerID
	if key == "" {
		key = "company"
	}
	f.calls = append(f.calls, key)
	if f.failFor[sellerID] {
		return nil, fmt.Errorf("bad data for %s", sellerID)
	}
	return &insights.Result{TotalSales: 100, CalculatedAt: asOf}, nil
}

type fakeSnapshotStore struct {
	sales       []models.Sale
	snapshots   []*models.InsightSnapshot
	pruneCalls  int
	pruneBefore time.Time
}

func (f *fakeSnapshotStore) InsertInsightSnapshot(snapshot *models.InsightSnapshot) error {
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeSnapshotStore) GetSalesByCompany(companyID string, start, end time.Time) ([]models.Sale, error) {
	return f.sales, nil
}

func (f *fakeSnapshotStore) PruneInsightSnapshots(companyID string, before time.Time) (int64, error) {
	f.pruneCalls++
	f.pruneBefore = before
	return 0, nil
}

func staleStatus() *models.TrainingStatus {
	return &models.TrainingStatus{
		CompanyID:       "c1",
		FileHash:        "hash-v2",
		LastTrainedHash: "hash-v1",
	}
}

func freshStatus() *models.TrainingStatus {
	return &models.TrainingStatus{
		CompanyID:       "c1",
		FileHash:        "hash-v1",
		LastTrainedHash: "hash-v1",
	}
}

func newTestOrchestrator(status *models.TrainingStatus, calc *fakeCalculator, store *fakeSnapshotStore) (*Orchestrator, *fakeStatusStore) {
	statusStore := &fakeStatusStore{status: status}
	o := NewOrchestrator(NewTracker(statusStore), calc, store, nil, 30*24*time.Hour)
	return o, statusStore
}

func TestTrainSkipsWhenDataUnchanged(t *testing.T) {
	calc := &fakeCalculator{}
	store := &fakeSnapshotStore{sales: []models.Sale{{SellerID: "s1"}}}
	o, statusStore := newTestOrchestrator(freshStatus(), calc, store)

	result, err := o.Train(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success || !result.Skipped {
		t.Errorf("expected skipped success, got %+v", result)
	}
	if len(calc.calls) != 0 {
		t.Errorf("expected no insight computation on skip, got %d calls", len(calc.calls))
	}
	if statusStore.trainedCalls != 0 {
		t.Errorf("expected no MarkTrained on skip")
	}
}

func TestTrainForceRecomputes(t *testing.T) {
	calc := &fakeCalculator{}
	store := &fakeSnapshotStore{sales: []models.Sale{{SellerID: "s1"}, {SellerID: "s2"}}}
	o, statusStore := newTestOrchestrator(freshStatus(), calc, store)

	result, err := o.Train(context.Background(), "c1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success || result.Skipped {
		t.Errorf("expected full run, got %+v", result)
	}
	if result.SellersProcessed != 2 {
		t.Errorf("sellers processed = %d, want 2", result.SellersProcessed)
	}
	// Two seller snapshots plus one tenant-wide snapshot.
	if result.InsightsGenerated != 3 {
		t.Errorf("insights generated = %d, want 3", result.InsightsGenerated)
	}
	if len(store.snapshots) != 3 {
		t.Errorf("snapshot rows = %d, want 3", len(store.snapshots))
	}
	if statusStore.trainedCalls != 1 || statusStore.trainedHash != "hash-v1" {
		t.Errorf("MarkTrained calls=%d hash=%q", statusStore.trainedCalls, statusStore.trainedHash)
	}
}

func TestTrainIsolatesSellerFailures(t *testing.T) {
	calc := &fakeCalculator{failFor: map[string]bool{"s2": true}}
	store := &fakeSnapshotStore{sales: []models.Sale{
		{SellerID: "s1"}, {SellerID: "s2"}, {SellerID: "s3"},
	}}
	o, statusStore := newTestOrchestrator(staleStatus(), calc, store)

	result, err := o.Train(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Success {
		t.Errorf("expected partial result, got success")
	}
	if result.SellersProcessed != 2 {
		t.Errorf("sellers processed = %d, want 2", result.SellersProcessed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly 1", result.Errors)
	}
	// One failed seller must not block the rest or the status update.
	if statusStore.trainedCalls != 1 {
		t.Errorf("expected MarkTrained despite per-seller failure")
	}
	if len(store.snapshots) != 3 {
		t.Errorf("snapshot rows = %d, want 3 (2 sellers + company)", len(store.snapshots))
	}
}

func TestTrainSecondRunSkips(t *testing.T) {
	calc := &fakeCalculator{}
	store := &fakeSnapshotStore{sales: []models.Sale{{SellerID: "s1"}}}
	o, _ := newTestOrchestrator(staleStatus(), calc, store)

	first, err := o.Train(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Skipped {
		t.Fatalf("first run should not skip")
	}

	second, err := o.Train(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Skipped {
		t.Errorf("second run with unchanged hash should skip")
	}
}

func TestTrainNoImportData(t *testing.T) {
	calc := &fakeCalculator{}
	store := &fakeSnapshotStore{}
	o, _ := newTestOrchestrator(nil, calc, store)

	result, err := o.Train(context.Background(), "c1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Success || result.Skipped {
		t.Errorf("expected explicit failure for missing import, got %+v", result)
	}
	if len(result.Errors) == 0 {
		t.Errorf("expected error entry describing missing import data")
	}
}

func TestTrainSnapshotScopes(t *testing.T) {
	calc := &fakeCalculator{}
	store := &fakeSnapshotStore{sales: []models.Sale{{SellerID: "s1"}}}
	o, _ := newTestOrchestrator(staleStatus(), calc, store)

	if _, err := o.Train(context.Background(), "c1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sellerTypes, companyTypes int
	for _, snap := range store.snapshots {
		switch snap.InsightType {
		case SnapshotTypeSeller:
			sellerTypes++
			if snap.SellerID != "s1" {
				t.Errorf("seller snapshot bound to %q", snap.SellerID)
			}
		case SnapshotTypeCompany:
			companyTypes++
			if snap.SellerID != "" {
				t.Errorf("company snapshot bound to seller %q", snap.SellerID)
			}
		}
		if snap.DataJSON == "" {
			t.Errorf("snapshot %s has empty payload", snap.ID)
		}
	}
	if sellerTypes != 1 || companyTypes != 1 {
		t.Errorf("snapshot types: seller=%d company=%d, want 1/1", sellerTypes, companyTypes)
	}
}

func TestTrainPrunesOldSnapshots(t *testing.T) {
	calc := &fakeCalculator{}
	store := &fakeSnapshotStore{sales: []models.Sale{{SellerID: "s1"}}}
	o, _ := newTestOrchestrator(staleStatus(), calc, store)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return now }

	if _, err := o.Train(context.Background(), "c1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.pruneCalls != 1 {
		t.Fatalf("prune calls = %d, want 1", store.pruneCalls)
	}
	want := now.Add(-30 * 24 * time.Hour)
	if !store.pruneBefore.Equal(want) {
		t.Errorf("prune cutoff = %v, want %v", store.pruneBefore, want)
	}
}

func TestTrainSkipsPruneWhenRetentionDisabled(t *testing.T) {
	calc := &fakeCalculator{}
	store := &fakeSnapshotStore{sales: []models.Sale{{SellerID: "s1"}}}
	statusStore := &fakeStatusStore{status: staleStatus()}
	o := NewOrchestrator(NewTracker(statusStore), calc, store, nil, 0)

	if _, err := o.Train(context.Background(), "c1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.pruneCalls != 0 {
		t.Errorf("prune calls = %d, want 0 with retention disabled", store.pruneCalls)
	}
}

func TestTrackerNoImportData(t *testing.T) {
	tracker := NewTracker(&fakeStatusStore{status: nil})

	_, err := tracker.Status("c1")
	if !errors.Is(err, ErrNoImportData) {
		t.Fatalf("expected ErrNoImportData, got %v", err)
	}

	if _, err := tracker.IsTrainingNeeded("c1"); !errors.Is(err, ErrNoImportData) {
		t.Errorf("IsTrainingNeeded should surface ErrNoImportData, got %v", err)
	}
}

func TestTrainingNeededPredicate(t *testing.T) {
	cases := []struct {
		name   string
		status models.TrainingStatus
		want   bool
	}{
		{"hash changed", models.TrainingStatus{FileHash: "b", LastTrainedHash: "a"}, true},
		{"never trained", models.TrainingStatus{FileHash: "a"}, true},
		{"stale flag", models.TrainingStatus{FileHash: "a", LastTrainedHash: "a", IsStale: true}, true},
		{"fresh", models.TrainingStatus{FileHash: "a", LastTrainedHash: "a"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.TrainingNeeded(); got != tc.want {
				t.Errorf("TrainingNeeded() = %v, want %v", got, tc.want)
			}
		})
	}
}
