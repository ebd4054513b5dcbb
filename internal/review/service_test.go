package review

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/liaxp/backend/internal/delivery"
	"github.com/liaxp/backend/internal/storage/models"
)

// fakeStore reproduces the guarded-transition contract of the sqlite layer:
// a transition only succeeds when the row is in the required source state.
type fakeStore struct {
	items     map[string]*models.ReviewItem
	insertErr error
}

func newFakeStore(items ...*models.ReviewItem) *fakeStore {
	s := &fakeStore{items: map[string]*models.ReviewItem{}}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (f *fakeStore) InsertReviewItem(item *models.ReviewItem) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	copied := *item
	f.items[item.ID] = &copied
	return nil
}

func (f *fakeStore) GetReviewItem(id string) (*models.ReviewItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (f *fakeStore) ListReviewItemsByStatus(companyID, status string) ([]models.ReviewItem, error) {
	var out []models.ReviewItem
	for _, item := range f.items {
		if item.CompanyID == companyID && item.Status == status {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionReviewItem(id, fromStatus, toStatus, reviewedBy, errorMessage string, at time.Time) (bool, error) {
	item, ok := f.items[id]
	if !ok || item.Status != fromStatus {
		return false, nil
	}
	item.Status = toStatus
	item.ReviewedBy = reviewedBy
	item.ReviewedAt = &at
	item.ErrorMessage = errorMessage
	if toStatus == models.ReviewStatusSent {
		item.SentAt = &at
	}
	return true, nil
}

func (f *fakeStore) SetReviewEditedMessage(id, editedMessage string) (bool, error) {
	item, ok := f.items[id]
	if !ok || item.Status != models.ReviewStatusPending {
		return false, nil
	}
	item.EditedMessage = editedMessage
	return true, nil
}

type fakeDeliverer struct {
	sentTexts []string
	fail      bool
	store     *fakeStore
}

func (f *fakeDeliverer) DeliverReviewItem(ctx context.Context, item *models.ReviewItem) (*delivery.Outcome, error) {
	f.sentTexts = append(f.sentTexts, item.MessageText())

	status := models.ReviewStatusSent
	errMsg := ""
	if f.fail {
		status = models.ReviewStatusFailed
		errMsg = "provider down"
	}
	if stored, ok := f.store.items[item.ID]; ok {
		stored.Status = status
		stored.ErrorMessage = errMsg
	}

	return &delivery.Outcome{Sent: !f.fail, ErrorMessage: errMsg}, nil
}

func pendingItem(id string) *models.ReviewItem {
	return &models.ReviewItem{
		ID:             id,
		CompanyID:      "c1",
		Moment:         "morning",
		RecipientPhone: "+5511999990000",
		RecipientName:  "Ana",
		DraftMessage:   "Bom dia! Rascunho original.",
		Status:         models.ReviewStatusPending,
		CreatedAt:      time.Now(),
	}
}

func TestCreateReviewPropagatesFailure(t *testing.T) {
	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	service := NewService(store, nil, nil, false)

	err := service.CreateReview(context.Background(), pendingItem("r1"))
	if err == nil {
		t.Fatal("expected persistence failure to propagate")
	}
}

func TestApproveWithoutImmediateSend(t *testing.T) {
	store := newFakeStore(pendingItem("r1"))
	service := NewService(store, nil, nil, false)

	item, err := service.ApproveAndSend(context.Background(), "r1", "manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.Status != models.ReviewStatusApproved {
		t.Errorf("status = %s, want Approved", item.Status)
	}
	if item.ReviewedBy != "manager" || item.ReviewedAt == nil {
		t.Errorf("review stamps missing: %+v", item)
	}
}

func TestApproveAndSendImmediate(t *testing.T) {
	store := newFakeStore(pendingItem("r1"))
	deliverer := &fakeDeliverer{store: store}
	service := NewService(store, deliverer, nil, true)

	item, err := service.ApproveAndSend(context.Background(), "r1", "manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.Status != models.ReviewStatusSent {
		t.Errorf("status = %s, want Sent", item.Status)
	}
	if len(deliverer.sentTexts) != 1 {
		t.Fatalf("deliverer calls = %d, want 1", len(deliverer.sentTexts))
	}
}

func TestApproveAndSendDeliveryFailure(t *testing.T) {
	store := newFakeStore(pendingItem("r1"))
	deliverer := &fakeDeliverer{store: store, fail: true}
	service := NewService(store, deliverer, nil, true)

	item, err := service.ApproveAndSend(context.Background(), "r1", "manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.Status != models.ReviewStatusFailed {
		t.Errorf("status = %s, want Failed", item.Status)
	}
}

func TestEditAndApproveUsesEditedText(t *testing.T) {
	store := newFakeStore(pendingItem("r1"))
	deliverer := &fakeDeliverer{store: store}
	service := NewService(store, deliverer, nil, true)

	edited := "Texto revisado pelo gestor."
	item, err := service.EditAndApprove(context.Background(), "r1", edited, "manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.EditedMessage != edited {
		t.Errorf("edited message = %q, want %q", item.EditedMessage, edited)
	}
	if len(deliverer.sentTexts) != 1 || deliverer.sentTexts[0] != edited {
		t.Errorf("delivered %v, want the edited text", deliverer.sentTexts)
	}
}

func TestTransitionsRequirePendingState(t *testing.T) {
	ops := []struct {
		name string
		run  func(s *Service) error
	}{
		{"approve", func(s *Service) error {
			_, err := s.ApproveAndSend(context.Background(), "r1", "manager")
			return err
		}},
		{"edit", func(s *Service) error {
			_, err := s.EditAndApprove(context.Background(), "r1", "novo texto", "manager")
			return err
		}},
		{"reject", func(s *Service) error {
			_, err := s.Reject(context.Background(), "r1", "manager", "duplicate")
			return err
		}},
	}

	for _, startStatus := range []string{
		models.ReviewStatusApproved,
		models.ReviewStatusRejected,
		models.ReviewStatusSent,
	} {
		for _, op := range ops {
			t.Run(fmt.Sprintf("%s from %s", op.name, startStatus), func(t *testing.T) {
				item := pendingItem("r1")
				item.Status = startStatus
				store := newFakeStore(item)
				service := NewService(store, nil, nil, false)

				err := op.run(service)
				if !errors.Is(err, ErrInvalidState) {
					t.Fatalf("expected ErrInvalidState, got %v", err)
				}

				after, _ := store.GetReviewItem("r1")
				if after.Status != startStatus {
					t.Errorf("state changed from %s to %s", startStatus, after.Status)
				}
			})
		}
	}
}

func TestRejectIsTerminal(t *testing.T) {
	store := newFakeStore(pendingItem("r1"))
	service := NewService(store, nil, nil, false)

	item, err := service.Reject(context.Background(), "r1", "manager", "tone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status != models.ReviewStatusRejected {
		t.Errorf("status = %s, want Rejected", item.Status)
	}
	if item.ErrorMessage != "tone" {
		t.Errorf("reason = %q, want tone", item.ErrorMessage)
	}

	if _, err := service.ApproveAndSend(context.Background(), "r1", "manager"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("approve after reject should fail, got %v", err)
	}
}

func TestHubPublishesTransitions(t *testing.T) {
	store := newFakeStore()
	hub := NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	service := NewService(store, nil, hub, false)

	if err := service.CreateReview(context.Background(), pendingItem("r1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.ApproveAndSend(context.Background(), "r1", "manager"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := []string{(<-events).Type, (<-events).Type}
	want := []string{EventCreated, EventApproved}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}
