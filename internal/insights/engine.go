package insights

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// SalesDataSource is the slice of storage the engine reads. Implemented by
// the sqlite client.
type SalesDataSource interface {
	GetSalesByCompany(companyID string, start, end time.Time) ([]models.Sale, error)
	GetSalesBySeller(sellerID string, start, end time.Time) ([]models.Sale, error)
	GetSalesByStore(storeID string, start, end time.Time) ([]models.Sale, error)
	GetGoalsByCompany(companyID string, month time.Time) ([]models.Goal, error)
	GetGoalsBySeller(sellerID string, month time.Time) ([]models.Goal, error)
	ListSellersByCompany(companyID string) ([]models.Seller, error)
}

// Result is one insights computation over the current-month window.
// Identical inputs always produce identical output: there is no randomness
// and the reference time is an explicit parameter.
type Result struct {
	TotalSales       float64         `json:"total_sales"`
	AvgTicket        float64         `json:"avg_ticket"`
	GoalGap          float64         `json:"goal_gap"`
	GoalProgress     float64         `json:"goal_progress"`
	ProjectedMonthly float64         `json:"projected_monthly"`
	Rankings         []SellerRanking `json:"rankings"`
	FocusAreas       []string        `json:"focus_areas"`
	Suggestions      []string        `json:"suggestions"`
	CalculatedAt     time.Time       `json:"calculated_at"`
}

type SellerRanking struct {
	Rank       int     `json:"rank"`
	SellerID   string  `json:"seller_id"`
	SellerName string  `json:"seller_name"`
	TotalSales float64 `json:"total_sales"`
}

type Engine struct {
	data SalesDataSource
}

func NewEngine(data SalesDataSource) *Engine {
	return &Engine{data: data}
}

// Calculate computes insights for a tenant, optionally scoped to one store or
// one seller. The window runs from the first of asOf's month through asOf.
func (e *Engine) Calculate(companyID, storeID, sellerID string, asOf time.Time) (*Result, error) {
	start := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())

	var sales []models.Sale
	var goals []models.Goal
	var err error

	switch {
	case sellerID != "":
		sales, err = e.data.GetSalesBySeller(sellerID, start, asOf)
		if err == nil {
			goals, err = e.data.GetGoalsBySeller(sellerID, start)
		}
	case storeID != "":
		sales, err = e.data.GetSalesByStore(storeID, start, asOf)
		if err == nil {
			goals, err = e.data.GetGoalsByCompany(companyID, start)
		}
	default:
		sales, err = e.data.GetSalesByCompany(companyID, start, asOf)
		if err == nil {
			goals, err = e.data.GetGoalsByCompany(companyID, start)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load window data: %w", err)
	}

	var totalSales float64
	var itemCount int
	for _, s := range sales {
		totalSales += s.TotalValue
		itemCount += s.ItemsQty
	}

	// Every ratio below guards its denominator; an empty window must yield
	// zeros, never a fault.
	avgTicket := 0.0
	if itemCount > 0 {
		avgTicket = totalSales / float64(itemCount)
	}

	var targetValue float64
	for _, g := range goals {
		targetValue += g.TargetValue
	}

	goalGap := targetValue - totalSales
	goalProgress := 0.0
	if targetValue > 0 {
		goalProgress = totalSales / targetValue * 100
	}

	daysInMonth := time.Date(asOf.Year(), asOf.Month()+1, 0, 0, 0, 0, 0, asOf.Location()).Day()
	daysElapsed := asOf.Day()
	projected := 0.0
	if daysElapsed > 0 {
		projected = totalSales / float64(daysElapsed) * float64(daysInMonth)
	}

	rankings, err := e.rankings(companyID, sales)
	if err != nil {
		return nil, err
	}

	result := &Result{
		TotalSales:       totalSales,
		AvgTicket:        avgTicket,
		GoalGap:          goalGap,
		GoalProgress:     goalProgress,
		ProjectedMonthly: projected,
		Rankings:         rankings,
		FocusAreas:       focusAreas(totalSales, targetValue, avgTicket),
		Suggestions:      suggestions(goalProgress, avgTicket),
		CalculatedAt:     asOf,
	}

	logger.Debug("Insights calculated",
		zap.String("company_id", companyID),
		zap.String("seller_id", sellerID),
		zap.Float64("total_sales", totalSales),
		zap.Float64("goal_progress", goalProgress),
	)

	return result, nil
}

// rankings groups sales by seller, sums totals and assigns 1-based ranks.
// Ties keep the input order of first appearance.
func (e *Engine) rankings(companyID string, sales []models.Sale) ([]SellerRanking, error) {
	if len(sales) == 0 {
		return nil, nil
	}

	names := map[string]string{}
	sellers, err := e.data.ListSellersByCompany(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seller names: %w", err)
	}
	for _, s := range sellers {
		names[s.ID] = s.Name
	}

	totals := map[string]float64{}
	var order []string
	for _, s := range sales {
		if _, seen := totals[s.SellerID]; !seen {
			order = append(order, s.SellerID)
		}
		totals[s.SellerID] += s.TotalValue
	}

	rankings := make([]SellerRanking, 0, len(order))
	for _, id := range order {
		rankings = append(rankings, SellerRanking{
			SellerID:   id,
			SellerName: names[id],
			TotalSales: totals[id],
		})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].TotalSales > rankings[j].TotalSales
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	return rankings, nil
}

func focusAreas(totalSales, targetValue, avgTicket float64) []string {
	var areas []string

	if totalSales < targetValue*0.7 {
		areas = append(areas, "Aumentar volume de vendas")
	}
	if avgTicket < 100 {
		areas = append(areas, "Trabalhar ticket médio")
	}
	areas = append(areas, "Produtos complementares")

	return areas
}

func suggestions(goalProgress, avgTicket float64) []string {
	var tips []string

	if goalProgress < 70 {
		tips = append(tips, "Foque em conversão - cada cliente conta!")
	}
	if avgTicket < 150 {
		tips = append(tips, "Ofereça combos e produtos premium")
	}
	tips = append(tips, "Mantenha contato próximo com clientes frequentes")

	return tips
}
