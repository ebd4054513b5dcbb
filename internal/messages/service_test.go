package messages

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/storage/models"
)

type fakeSnapshots struct {
	results map[string]*insights.Result
}

func (f *fakeSnapshots) GetLatestInsightSnapshot(companyID, storeID, sellerID string) (*models.InsightSnapshot, error) {
	result, ok := f.results[sellerID]
	if !ok {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &models.InsightSnapshot{
		ID:        "snap-" + sellerID,
		CompanyID: companyID,
		SellerID:  sellerID,
		DataJSON:  string(data),
		CachedAt:  time.Now(),
	}, nil
}

type fakeSellers struct {
	sellers []models.Seller
}

func (f *fakeSellers) ListSellersByCompany(companyID string) ([]models.Seller, error) {
	return f.sellers, nil
}

type fakeReviews struct {
	created []*models.ReviewItem
	failFor map[string]bool
}

func (f *fakeReviews) CreateReview(ctx context.Context, item *models.ReviewItem) error {
	if f.failFor[item.RecipientPhone] {
		return errors.New("insert failed")
	}
	f.created = append(f.created, item)
	return nil
}

func testResult() *insights.Result {
	return &insights.Result{
		TotalSales:   300,
		AvgTicket:    85.5,
		GoalGap:      700,
		GoalProgress: 30,
		Suggestions:  []string{"Foque em conversão - cada cliente conta!"},
	}
}

func testGenerator(snapshots *fakeSnapshots, sellers *fakeSellers) *Generator {
	return NewGenerator(snapshots, sellers, nil, nil)
}

func TestParseMoment(t *testing.T) {
	for _, valid := range []string{"morning", "midday", "evening"} {
		if _, err := ParseMoment(valid); err != nil {
			t.Errorf("ParseMoment(%q) failed: %v", valid, err)
		}
	}

	for _, invalid := range []string{"", "night", "Morning", "MORNING"} {
		if _, err := ParseMoment(invalid); err == nil {
			t.Errorf("ParseMoment(%q) should fail", invalid)
		}
	}
}

func TestGenerateMomentTemplates(t *testing.T) {
	snapshots := &fakeSnapshots{results: map[string]*insights.Result{"s1": testResult()}}
	g := testGenerator(snapshots, nil)

	cases := []struct {
		moment   Moment
		fragment string
	}{
		{MomentMorning, "Bom dia"},
		{MomentMorning, "R$ 700.00"},
		{MomentMorning, "30%"},
		{MomentMidday, "R$ 85.50"},
		{MomentEvening, "R$ 300.00"},
	}

	for _, tc := range cases {
		msg, err := g.Generate(context.Background(), tc.moment, "c1", "", "s1", "Ana")
		if err != nil {
			t.Fatalf("Generate(%s) failed: %v", tc.moment, err)
		}
		if !strings.Contains(msg, tc.fragment) {
			t.Errorf("%s message missing %q:\n%s", tc.moment, tc.fragment, msg)
		}
	}
}

func TestGenerateAllSkipsSellersWithoutPhone(t *testing.T) {
	snapshots := &fakeSnapshots{results: map[string]*insights.Result{
		"s1": testResult(),
		"s2": testResult(),
	}}
	sellers := &fakeSellers{sellers: []models.Seller{
		{ID: "s1", Name: "Ana", PhoneE164: "+5511999990001"},
		{ID: "s2", Name: "Bruno"},
	}}
	g := testGenerator(snapshots, sellers)

	drafts, err := g.GenerateAll(context.Background(), MomentMorning, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(drafts) != 1 || drafts[0].SellerID != "s1" {
		t.Errorf("drafts = %+v, want only s1", drafts)
	}
}

func TestGenerateAllSkipsSellersWithoutSnapshot(t *testing.T) {
	snapshots := &fakeSnapshots{results: map[string]*insights.Result{"s1": testResult()}}
	sellers := &fakeSellers{sellers: []models.Seller{
		{ID: "s1", Name: "Ana", PhoneE164: "+5511999990001"},
		{ID: "s2", Name: "Bruno", PhoneE164: "+5511999990002"},
	}}
	g := testGenerator(snapshots, sellers)

	drafts, err := g.GenerateAll(context.Background(), MomentEvening, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(drafts) != 1 || drafts[0].SellerID != "s1" {
		t.Errorf("drafts = %+v, want only the seller with cached insights", drafts)
	}
}

func TestGenerateScheduledQueuesPendingItems(t *testing.T) {
	snapshots := &fakeSnapshots{results: map[string]*insights.Result{
		"s1": testResult(),
		"s2": testResult(),
	}}
	sellers := &fakeSellers{sellers: []models.Seller{
		{ID: "s1", Name: "Ana", PhoneE164: "+5511999990001"},
		{ID: "s2", Name: "Bruno", PhoneE164: "+5511999990002"},
	}}
	reviews := &fakeReviews{}
	service := NewService(testGenerator(snapshots, sellers), reviews, true)

	result, err := service.GenerateScheduled(context.Background(), MomentMorning, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success || result.AutoApproved {
		t.Errorf("expected queued result, got %+v", result)
	}
	if result.MessagesQueued != 2 || result.FailedMessages != 0 {
		t.Errorf("queued/failed = %d/%d, want 2/0", result.MessagesQueued, result.FailedMessages)
	}
	if len(reviews.created) != 2 {
		t.Fatalf("review rows = %d, want 2", len(reviews.created))
	}
	for _, item := range reviews.created {
		if item.Status != models.ReviewStatusPending {
			t.Errorf("item status = %s, want Pending", item.Status)
		}
		if item.Moment != "morning" {
			t.Errorf("item moment = %s, want morning", item.Moment)
		}
	}
}

func TestGenerateScheduledCountsQueueFailuresSeparately(t *testing.T) {
	snapshots := &fakeSnapshots{results: map[string]*insights.Result{
		"s1": testResult(),
		"s2": testResult(),
	}}
	sellers := &fakeSellers{sellers: []models.Seller{
		{ID: "s1", Name: "Ana", PhoneE164: "+5511999990001"},
		{ID: "s2", Name: "Bruno", PhoneE164: "+5511999990002"},
	}}
	reviews := &fakeReviews{failFor: map[string]bool{"+5511999990002": true}}
	service := NewService(testGenerator(snapshots, sellers), reviews, true)

	result, err := service.GenerateScheduled(context.Background(), MomentMorning, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.MessagesQueued != 1 || result.FailedMessages != 1 {
		t.Errorf("queued/failed = %d/%d, want 1/1", result.MessagesQueued, result.FailedMessages)
	}
}

func TestGenerateScheduledAutoApprove(t *testing.T) {
	snapshots := &fakeSnapshots{results: map[string]*insights.Result{"s1": testResult()}}
	sellers := &fakeSellers{sellers: []models.Seller{
		{ID: "s1", Name: "Ana", PhoneE164: "+5511999990001"},
	}}
	reviews := &fakeReviews{}
	service := NewService(testGenerator(snapshots, sellers), reviews, false)

	result, err := service.GenerateScheduled(context.Background(), MomentMorning, "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.AutoApproved || result.MessagesQueued != 1 {
		t.Errorf("expected auto-approved count 1, got %+v", result)
	}
	if len(reviews.created) != 0 {
		t.Errorf("review queue must stay empty with review disabled, got %d rows", len(reviews.created))
	}
	if len(result.Drafts) != 1 {
		t.Errorf("drafts = %d, want 1 for direct delivery", len(result.Drafts))
	}
}
