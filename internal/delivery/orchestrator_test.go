package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liaxp/backend/internal/messages"
	"github.com/liaxp/backend/internal/messaging"
	"github.com/liaxp/backend/internal/storage/models"
)

type fakeReviewStore struct {
	sendable  []models.ReviewItem
	delivered map[string]string
}

func (f *fakeReviewStore) ListSendableReviewItems(companyID, moment string) ([]models.ReviewItem, error) {
	var out []models.ReviewItem
	for _, item := range f.sendable {
		if moment != "" && item.Moment != moment {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeReviewStore) MarkReviewDelivered(id, status, errorMessage string, at time.Time) error {
	if f.delivered == nil {
		f.delivered = map[string]string{}
	}
	f.delivered[id] = status
	return nil
}

type fakeLogStore struct {
	entries []models.MessageLogEntry
	calls   int
	failOn  map[int]bool
}

func (f *fakeLogStore) InsertMessageLog(entry *models.MessageLogEntry) error {
	f.calls++
	if f.failOn[f.calls] {
		return errors.New("disk full")
	}
	f.entries = append(f.entries, *entry)
	return nil
}

// flakyProvider fails on configured call numbers (1-based).
type flakyProvider struct {
	calls   int
	failOn  map[int]bool
	targets []string
}

func (p *flakyProvider) Send(ctx context.Context, toPhoneE164, body, companyID string) (*messaging.SendResult, error) {
	p.calls++
	p.targets = append(p.targets, toPhoneE164)
	if p.failOn[p.calls] {
		return &messaging.SendResult{Success: false, Error: "provider rejected message"}, nil
	}
	return &messaging.SendResult{Success: true, ExternalID: "ext-" + toPhoneE164}, nil
}

func (p *flakyProvider) ValidateWebhook(signature string, payload []byte) bool { return true }

func (p *flakyProvider) ProviderName() string { return "fake" }

func approvedItem(id, phone, moment string) models.ReviewItem {
	return models.ReviewItem{
		ID:             id,
		CompanyID:      "c1",
		Moment:         moment,
		RecipientPhone: phone,
		RecipientName:  "Ana",
		DraftMessage:   "Bom dia, " + phone,
		Status:         models.ReviewStatusApproved,
		CreatedAt:      time.Now(),
	}
}

func TestSendApprovedPartialFailure(t *testing.T) {
	reviews := &fakeReviewStore{sendable: []models.ReviewItem{
		approvedItem("r1", "+551100000001", "morning"),
		approvedItem("r2", "+551100000002", "morning"),
		approvedItem("r3", "+551100000003", "morning"),
	}}
	log := &fakeLogStore{}
	provider := &flakyProvider{failOn: map[int]bool{2: true}}

	o := NewOrchestrator(reviews, log, provider, 0)

	result, err := o.SendApproved(context.Background(), "c1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.MessagesSent != 2 || result.MessagesFailed != 1 {
		t.Errorf("sent/failed = %d/%d, want 2/1", result.MessagesSent, result.MessagesFailed)
	}
	if len(log.entries) != 3 {
		t.Fatalf("log rows = %d, want 3", len(log.entries))
	}

	var sentRows, failedRows int
	for _, entry := range log.entries {
		switch entry.Status {
		case models.MessageStatusSent:
			sentRows++
		case models.MessageStatusFailed:
			failedRows++
			if entry.ErrorMessage == "" {
				t.Errorf("failed row missing provider error")
			}
		}
	}
	if sentRows != 2 || failedRows != 1 {
		t.Errorf("log rows sent/failed = %d/%d, want 2/1", sentRows, failedRows)
	}
}

func TestSendApprovedWritesReviewStatusBack(t *testing.T) {
	reviews := &fakeReviewStore{sendable: []models.ReviewItem{
		approvedItem("ok", "+551100000001", "morning"),
		approvedItem("bad", "+551100000002", "morning"),
	}}
	provider := &flakyProvider{failOn: map[int]bool{2: true}}

	o := NewOrchestrator(reviews, &fakeLogStore{}, provider, 0)

	if _, err := o.SendApproved(context.Background(), "c1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reviews.delivered["ok"] != models.ReviewStatusSent {
		t.Errorf("item ok = %s, want Sent", reviews.delivered["ok"])
	}
	if reviews.delivered["bad"] != models.ReviewStatusFailed {
		t.Errorf("item bad = %s, want Failed", reviews.delivered["bad"])
	}
}

func TestSendApprovedUsesEditedText(t *testing.T) {
	item := approvedItem("r1", "+551100000001", "morning")
	item.EditedMessage = "Mensagem editada pelo revisor."
	reviews := &fakeReviewStore{sendable: []models.ReviewItem{item}}
	log := &fakeLogStore{}

	o := NewOrchestrator(reviews, log, &flakyProvider{}, 0)

	if _, err := o.SendApproved(context.Background(), "c1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(log.entries) != 1 || log.entries[0].Message != item.EditedMessage {
		t.Errorf("delivered %q, want the edited text", log.entries[0].Message)
	}
}

func TestSendApprovedMomentFilter(t *testing.T) {
	reviews := &fakeReviewStore{sendable: []models.ReviewItem{
		approvedItem("m1", "+551100000001", "morning"),
		approvedItem("e1", "+551100000002", "evening"),
	}}
	provider := &flakyProvider{}

	o := NewOrchestrator(reviews, &fakeLogStore{}, provider, 0)

	result, err := o.SendApproved(context.Background(), "c1", "morning")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.MessagesSent != 1 {
		t.Errorf("sent = %d, want 1", result.MessagesSent)
	}
	if len(provider.targets) != 1 || provider.targets[0] != "+551100000001" {
		t.Errorf("delivered to %v, want only the morning item", provider.targets)
	}
}

func TestSendApprovedContinuesPastPersistenceFailure(t *testing.T) {
	reviews := &fakeReviewStore{sendable: []models.ReviewItem{
		approvedItem("r1", "+551100000001", "morning"),
		approvedItem("r2", "+551100000002", "morning"),
		approvedItem("r3", "+551100000003", "morning"),
	}}
	// The second item's log insert fails; the third must still go out.
	log := &fakeLogStore{failOn: map[int]bool{2: true}}
	provider := &flakyProvider{}

	o := NewOrchestrator(reviews, log, provider, 0)

	result, err := o.SendApproved(context.Background(), "c1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.MessagesSent != 2 || result.MessagesFailed != 1 {
		t.Errorf("sent/failed = %d/%d, want 2/1", result.MessagesSent, result.MessagesFailed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly 1", result.Errors)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want all 3 items attempted", provider.calls)
	}
	// The unrecorded item keeps its review row untouched and stays sendable.
	if _, ok := reviews.delivered["r2"]; ok {
		t.Error("item with failed log insert must not be marked delivered")
	}
	if reviews.delivered["r1"] != models.ReviewStatusSent || reviews.delivered["r3"] != models.ReviewStatusSent {
		t.Errorf("delivered = %v, want r1 and r3 Sent", reviews.delivered)
	}
}

func TestSendApprovedCancellationKeepsCounters(t *testing.T) {
	reviews := &fakeReviewStore{sendable: []models.ReviewItem{
		approvedItem("r1", "+551100000001", "morning"),
		approvedItem("r2", "+551100000002", "morning"),
	}}
	provider := &flakyProvider{}
	o := NewOrchestrator(reviews, &fakeLogStore{}, provider, 0)

	ctx, cancel := context.WithCancel(context.Background())

	// Cancel after the first provider call completes.
	o.now = func() time.Time {
		cancel()
		return time.Now()
	}

	result, err := o.SendApproved(ctx, "c1", "")
	if err == nil {
		t.Fatal("expected context error")
	}
	if result.MessagesSent != 1 {
		t.Errorf("sent = %d, want 1 completed unit to stand", result.MessagesSent)
	}
}

func TestSendDraftsLogsWithoutReviewRows(t *testing.T) {
	log := &fakeLogStore{}
	reviews := &fakeReviewStore{}
	provider := &flakyProvider{failOn: map[int]bool{1: true}}

	o := NewOrchestrator(reviews, log, provider, 0)

	drafts := []messages.Draft{
		{SellerID: "s1", PhoneE164: "+551100000001", Message: "m1", Moment: messages.MomentMorning},
		{SellerID: "s2", PhoneE164: "+551100000002", Message: "m2", Moment: messages.MomentMorning},
	}

	result, err := o.SendDrafts(context.Background(), "c1", drafts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.MessagesSent != 1 || result.MessagesFailed != 1 {
		t.Errorf("sent/failed = %d/%d, want 1/1", result.MessagesSent, result.MessagesFailed)
	}
	if len(log.entries) != 2 {
		t.Errorf("log rows = %d, want 2", len(log.entries))
	}
	if len(reviews.delivered) != 0 {
		t.Errorf("SendDrafts must not touch review rows, got %v", reviews.delivered)
	}
}
