package messages

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/insights"
	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// SnapshotReader is the insight_cache read slice of storage.
type SnapshotReader interface {
	GetLatestInsightSnapshot(companyID, storeID, sellerID string) (*models.InsightSnapshot, error)
}

// SellerSource lists the sellers eligible for coaching messages.
type SellerSource interface {
	ListSellersByCompany(companyID string) ([]models.Seller, error)
}

// HotCache is checked before sqlite; a miss is not an error.
type HotCache interface {
	GetInsights(ctx context.Context, companyID, storeID, sellerID string) (*insights.Result, bool, error)
}

// Polisher rewrites a templated draft into a warmer tone. Optional; the
// template stands on its own when polishing fails or is disabled.
type Polisher interface {
	PolishMessage(ctx context.Context, draft, sellerName string) (string, error)
}

// Draft is a rendered message bound to a recipient, not yet persisted.
type Draft struct {
	SellerID   string `json:"seller_id"`
	SellerName string `json:"seller_name"`
	PhoneE164  string `json:"phone_e164"`
	Message    string `json:"message"`
	Moment     Moment `json:"moment"`
}

// Generator renders coaching messages from cached insight snapshots. It never
// recomputes insights; drafts reflect the last training run.
type Generator struct {
	snapshots SnapshotReader
	sellers   SellerSource
	hotCache  HotCache
	polisher  Polisher
}

func NewGenerator(snapshots SnapshotReader, sellers SellerSource, hotCache HotCache, polisher Polisher) *Generator {
	return &Generator{
		snapshots: snapshots,
		sellers:   sellers,
		hotCache:  hotCache,
		polisher:  polisher,
	}
}

// Generate renders one message for the given scope and moment.
func (g *Generator) Generate(ctx context.Context, moment Moment, companyID, storeID, sellerID, sellerName string) (string, error) {
	result, err := g.loadInsights(ctx, companyID, storeID, sellerID)
	if err != nil {
		return "", err
	}

	var draft string
	switch moment {
	case MomentMorning:
		draft = morningMessage(result)
	case MomentMidday:
		draft = middayMessage(result)
	case MomentEvening:
		draft = eveningMessage(result)
	default:
		return "", fmt.Errorf("unknown moment: %q", moment)
	}

	if g.polisher != nil {
		polished, err := g.polisher.PolishMessage(ctx, draft, sellerName)
		if err != nil {
			logger.Warn("Message polish failed, keeping template",
				zap.String("seller_id", sellerID),
				zap.Error(err),
			)
			return draft, nil
		}
		return polished, nil
	}

	return draft, nil
}

// GenerateAll renders a draft for every active seller with a phone number.
// Sellers without a cached snapshot are skipped with a warning.
func (g *Generator) GenerateAll(ctx context.Context, moment Moment, companyID string) ([]Draft, error) {
	sellers, err := g.sellers.ListSellersByCompany(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}

	var drafts []Draft
	for _, seller := range sellers {
		if seller.PhoneE164 == "" {
			continue
		}
		if ctx.Err() != nil {
			return drafts, ctx.Err()
		}

		message, err := g.Generate(ctx, moment, companyID, "", seller.ID, seller.Name)
		if err != nil {
			logger.Warn("Skipping seller without usable insights",
				zap.String("company_id", companyID),
				zap.String("seller_id", seller.ID),
				zap.Error(err),
			)
			continue
		}

		drafts = append(drafts, Draft{
			SellerID:   seller.ID,
			SellerName: seller.Name,
			PhoneE164:  seller.PhoneE164,
			Message:    message,
			Moment:     moment,
		})
	}

	return drafts, nil
}

func (g *Generator) loadInsights(ctx context.Context, companyID, storeID, sellerID string) (*insights.Result, error) {
	if g.hotCache != nil {
		result, found, err := g.hotCache.GetInsights(ctx, companyID, storeID, sellerID)
		if err != nil {
			logger.Warn("Hot cache read failed, falling back to sqlite", zap.Error(err))
		} else if found {
			return result, nil
		}
	}

	snapshot, err := g.snapshots.GetLatestInsightSnapshot(companyID, storeID, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load insight snapshot: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("no cached insights for company %s seller %q", companyID, sellerID)
	}

	var result insights.Result
	if err := json.Unmarshal([]byte(snapshot.DataJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to decode insight snapshot: %w", err)
	}

	return &result, nil
}

func morningMessage(r *insights.Result) string {
	tip := "Mantenha o foco!"
	if len(r.Suggestions) > 0 {
		tip = r.Suggestions[0]
	}
	return fmt.Sprintf("Bom dia! 🌅\n\n"+
		"Você está em %.0f%% da sua meta mensal.\n"+
		"Faltam R$ %.2f para completar o objetivo.\n\n"+
		"Dica do dia: %s\n\n"+
		"Vamos com tudo! 💪", r.GoalProgress, r.GoalGap, tip)
}

func middayMessage(r *insights.Result) string {
	return fmt.Sprintf("Hora do almoço! ⏰\n\n"+
		"Como está indo? Ticket médio hoje: R$ %.2f\n\n"+
		"Lembre-se: cada venda conta! Continue firme. 🎯", r.AvgTicket)
}

func eveningMessage(r *insights.Result) string {
	return fmt.Sprintf("Fim de expediente! 🌙\n\n"+
		"Vendas hoje: R$ %.2f\n"+
		"Progresso da meta: %.0f%%\n\n"+
		"Ótimo trabalho! Descanse bem e até amanhã! 👏", r.TotalSales, r.GoalProgress)
}
