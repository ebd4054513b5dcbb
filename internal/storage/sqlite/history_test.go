package sqlite

import (
	"fmt"
	"testing"
	"time"

	"github.com/liaxp/backend/internal/storage/models"
)

func TestListChatHistoryNewestFirstWithLimit(t *testing.T) {
	client := testClient(t)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := client.InsertChatMessage(&models.ChatMessage{
			ID:        fmt.Sprintf("m%d", i),
			CompanyID: "c1",
			PhoneE164: "+5511999990001",
			Direction: models.DirectionInbound,
			Message:   fmt.Sprintf("mensagem %d", i),
			Intent:    "goal_gap",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	// Another phone's row must not leak into the transcript.
	if err := client.InsertChatMessage(&models.ChatMessage{
		ID:        "other",
		CompanyID: "c1",
		PhoneE164: "+5511999990002",
		Direction: models.DirectionInbound,
		Message:   "oi",
		CreatedAt: base,
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	history, err := client.ListChatHistory("c1", "+5511999990001", 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("rows = %d, want 3", len(history))
	}
	if history[0].ID != "m4" || history[2].ID != "m2" {
		t.Errorf("order = %s..%s, want newest first (m4..m2)", history[0].ID, history[2].ID)
	}
	if history[0].Intent != "goal_gap" {
		t.Errorf("intent = %q, want goal_gap", history[0].Intent)
	}
}

func TestListMessageLogScopedToCompany(t *testing.T) {
	client := testClient(t)
	if err := client.UpsertCompany(&models.Company{
		ID: "c2", Code: "OTHER", Name: "Outra", IsActive: true, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert company failed: %v", err)
	}

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i, companyID := range []string{"c1", "c1", "c2"} {
		err := client.InsertMessageLog(&models.MessageLogEntry{
			ID:        fmt.Sprintf("log%d", i),
			CompanyID: companyID,
			Direction: models.DirectionOutbound,
			PhoneTo:   "+5511999990001",
			Message:   "oi",
			Provider:  "meta",
			Status:    models.MessageStatusSent,
			SentAt:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	entries, err := client.ListMessageLog("c1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("rows = %d, want 2", len(entries))
	}
	if entries[0].ID != "log1" {
		t.Errorf("first row = %s, want the newest c1 row", entries[0].ID)
	}
}

func TestGetSellerByID(t *testing.T) {
	client := testClient(t)
	if err := client.UpsertSeller(&models.Seller{
		ID:         "s1",
		CompanyID:  "c1",
		SellerCode: "V001",
		Name:       "Ana",
		PhoneE164:  "+5511999990001",
		Status:     "Active",
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	seller, err := client.GetSellerByID("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if seller == nil || seller.Name != "Ana" || seller.PhoneE164 != "+5511999990001" {
		t.Errorf("seller = %+v", seller)
	}

	missing, err := client.GetSellerByID("nope")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if missing != nil {
		t.Errorf("unknown id should return nil, got %+v", missing)
	}
}

func TestPruneInsightSnapshotsKeepsRecentRows(t *testing.T) {
	client := testClient(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{0, 24 * time.Hour, 40 * 24 * time.Hour} {
		err := client.InsertInsightSnapshot(&models.InsightSnapshot{
			ID:          fmt.Sprintf("snap%d", i),
			CompanyID:   "c1",
			SellerID:    "s1",
			InsightDate: now,
			InsightType: "seller",
			DataJSON:    "{}",
			CachedAt:    now.Add(-age),
		})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	pruned, err := client.PruneInsightSnapshots("c1", now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	latest, err := client.GetLatestInsightSnapshot("c1", "", "s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if latest == nil || latest.ID != "snap0" {
		t.Errorf("latest = %+v, want snap0 to survive", latest)
	}
}

func TestUpsertScheduleKeepsOriginalID(t *testing.T) {
	client := testClient(t)

	first := &models.MessageSchedule{
		ID: "sch-1", CompanyID: "c1", Moment: "morning", CronExpr: "0 8 * * *", Enabled: true,
	}
	if err := client.UpsertMessageSchedule(first); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Same pair with a new ID: the conflict branch updates in place.
	second := &models.MessageSchedule{
		ID: "sch-2", CompanyID: "c1", Moment: "morning", CronExpr: "30 8 * * *", Enabled: false,
	}
	if err := client.UpsertMessageSchedule(second); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	stored, err := client.GetMessageSchedule("c1", "morning")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored == nil {
		t.Fatal("schedule not found after upsert")
	}
	if stored.ID != "sch-1" {
		t.Errorf("stored ID = %s, want the original sch-1", stored.ID)
	}
	if stored.CronExpr != "30 8 * * *" || stored.Enabled {
		t.Errorf("stored = %+v, want updated cron and enabled=false", stored)
	}
}

func TestGoalMonthKeyIsZoneIndependent(t *testing.T) {
	client := testClient(t)
	if err := client.UpsertSeller(&models.Seller{
		ID: "s1", CompanyID: "c1", SellerCode: "V001", Name: "Ana", Status: "Active",
	}); err != nil {
		t.Fatalf("insert seller failed: %v", err)
	}

	// Goal imported with a UTC month key.
	if err := client.InsertGoal(&models.Goal{
		ID:          "g1",
		CompanyID:   "c1",
		SellerID:    "s1",
		Month:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		TargetValue: 1000,
	}); err != nil {
		t.Fatalf("insert goal failed: %v", err)
	}

	// Looked up with a timestamp from a different zone, mid-month.
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	goals, err := client.GetGoalsBySeller("s1", time.Date(2026, 8, 15, 14, 30, 0, 0, saoPaulo))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	if len(goals) != 1 || goals[0].TargetValue != 1000 {
		t.Errorf("goals = %+v, want the August goal regardless of zone", goals)
	}
}
