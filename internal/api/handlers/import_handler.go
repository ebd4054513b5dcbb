package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/internal/storage/sqlite"
	"github.com/liaxp/backend/pkg/logger"
	"github.com/liaxp/backend/pkg/utils"
)

// CacheInvalidator drops a tenant's cached insights after a fresh import.
type CacheInvalidator interface {
	InvalidateCompany(ctx context.Context, companyID string) error
}

type sellerRow struct {
	SellerCode string `json:"seller_code"`
	Name       string `json:"name"`
	PhoneE164  string `json:"phone_e164"`
	Email      string `json:"email"`
	StoreID    string `json:"store_id"`
}

type saleRow struct {
	SellerCode string    `json:"seller_code"`
	StoreID    string    `json:"store_id"`
	SaleDate   time.Time `json:"sale_date"`
	TotalValue float64   `json:"total_value"`
	ItemsQty   int       `json:"items_qty"`
	Category   string    `json:"category"`
}

type goalRow struct {
	SellerCode   string    `json:"seller_code"`
	StoreID      string    `json:"store_id"`
	Month        time.Time `json:"month"`
	TargetValue  float64   `json:"target_value"`
	TargetTicket float64   `json:"target_ticket"`
}

// ImportHandler ingests a tenant's dataset: sellers, sales and goals in one
// JSON payload. The import records a dataset hash so the training tracker
// can tell whether cached insights are stale.
type ImportHandler struct {
	store       *sqlite.Client
	invalidator CacheInvalidator
}

func NewImportHandler(store *sqlite.Client, invalidator CacheInvalidator) *ImportHandler {
	return &ImportHandler{store: store, invalidator: invalidator}
}

func (h *ImportHandler) HandleImport(c *fiber.Ctx) error {
	var req struct {
		CompanyCode string      `json:"company_code"`
		CompanyName string      `json:"company_name"`
		Sellers     []sellerRow `json:"sellers"`
		Sales       []saleRow   `json:"sales"`
		Goals       []goalRow   `json:"goals"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse import payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CompanyCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "company_code is required",
		})
	}

	company, err := h.resolveCompany(req.CompanyCode, req.CompanyName)
	if err != nil {
		logger.Error("Failed to resolve company", zap.String("code", req.CompanyCode), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve company",
		})
	}

	sellersByCode, err := h.importSellers(company.ID, req.Sellers)
	if err != nil {
		logger.Error("Failed to import sellers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to import sellers",
		})
	}

	salesImported, hashRows, err := h.importSales(company.ID, sellersByCode, req.Sales)
	if err != nil {
		logger.Error("Failed to import sales", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to import sales",
		})
	}

	goalsImported, goalRows, err := h.importGoals(company.ID, sellersByCode, req.Goals)
	if err != nil {
		logger.Error("Failed to import goals", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to import goals",
		})
	}

	// The hash covers the rows that feed insights; re-importing identical
	// data keeps training skippable.
	datasetHash := utils.HashDataset(append(hashRows, goalRows...))
	importedAt := time.Now()

	if err := h.store.UpsertImportStatus(company.ID, datasetHash, importedAt); err != nil {
		logger.Error("Failed to record import status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record import status",
		})
	}

	if h.invalidator != nil {
		if err := h.invalidator.InvalidateCompany(c.Context(), company.ID); err != nil {
			logger.Warn("Failed to invalidate hot cache", zap.Error(err))
		}
	}

	logger.Info("Dataset imported",
		zap.String("company_id", company.ID),
		zap.Int("sellers", len(sellersByCode)),
		zap.Int("sales", salesImported),
		zap.Int("goals", goalsImported),
		zap.String("hash", datasetHash),
	)

	return c.JSON(fiber.Map{
		"company_id":   company.ID,
		"sellers":      len(sellersByCode),
		"sales":        salesImported,
		"goals":        goalsImported,
		"dataset_hash": datasetHash,
		"imported_at":  importedAt,
	})
}

func (h *ImportHandler) resolveCompany(code, name string) (*models.Company, error) {
	company, err := h.store.GetCompanyByCode(code)
	if err != nil {
		return nil, err
	}
	if company != nil {
		return company, nil
	}

	company = &models.Company{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := h.store.UpsertCompany(company); err != nil {
		return nil, err
	}
	return company, nil
}

func (h *ImportHandler) importSellers(companyID string, rows []sellerRow) (map[string]string, error) {
	byCode := make(map[string]string, len(rows))

	for _, row := range rows {
		if row.SellerCode == "" {
			continue
		}

		seller := &models.Seller{
			ID:         uuid.NewString(),
			CompanyID:  companyID,
			StoreID:    row.StoreID,
			SellerCode: row.SellerCode,
			Name:       row.Name,
			PhoneE164:  row.PhoneE164,
			Email:      row.Email,
			Status:     "Active",
		}
		if err := h.store.UpsertSeller(seller); err != nil {
			return nil, err
		}
	}

	// Re-read so codes map to the persisted IDs; upsert keeps existing IDs.
	sellers, err := h.store.ListSellersByCompany(companyID)
	if err != nil {
		return nil, err
	}
	for _, s := range sellers {
		byCode[s.SellerCode] = s.ID
	}

	return byCode, nil
}

func (h *ImportHandler) importSales(companyID string, sellersByCode map[string]string, rows []saleRow) (int, []string, error) {
	imported := 0
	hashRows := make([]string, 0, len(rows))

	for _, row := range rows {
		sellerID, ok := sellersByCode[row.SellerCode]
		if !ok {
			logger.Warn("Skipping sale with unknown seller code", zap.String("seller_code", row.SellerCode))
			continue
		}

		avgTicket := 0.0
		if row.ItemsQty > 0 {
			avgTicket = row.TotalValue / float64(row.ItemsQty)
		}

		sale := &models.Sale{
			ID:         uuid.NewString(),
			CompanyID:  companyID,
			StoreID:    row.StoreID,
			SellerID:   sellerID,
			SaleDate:   row.SaleDate,
			TotalValue: row.TotalValue,
			ItemsQty:   row.ItemsQty,
			AvgTicket:  avgTicket,
			Category:   row.Category,
		}
		if err := h.store.InsertSale(sale); err != nil {
			return imported, nil, err
		}

		imported++
		hashRows = append(hashRows, fmt.Sprintf("sale|%s|%s|%.2f|%d",
			row.SellerCode, row.SaleDate.Format(time.RFC3339), row.TotalValue, row.ItemsQty))
	}

	return imported, hashRows, nil
}

func (h *ImportHandler) importGoals(companyID string, sellersByCode map[string]string, rows []goalRow) (int, []string, error) {
	imported := 0
	hashRows := make([]string, 0, len(rows))

	for _, row := range rows {
		sellerID := ""
		if row.SellerCode != "" {
			id, ok := sellersByCode[row.SellerCode]
			if !ok {
				logger.Warn("Skipping goal with unknown seller code", zap.String("seller_code", row.SellerCode))
				continue
			}
			sellerID = id
		}

		goal := &models.Goal{
			ID:           uuid.NewString(),
			CompanyID:    companyID,
			StoreID:      row.StoreID,
			SellerID:     sellerID,
			Month:        row.Month,
			TargetValue:  row.TargetValue,
			TargetTicket: row.TargetTicket,
		}
		if err := h.store.InsertGoal(goal); err != nil {
			return imported, nil, err
		}

		imported++
		hashRows = append(hashRows, fmt.Sprintf("goal|%s|%s|%.2f",
			row.SellerCode, row.Month.Format("2006-01"), row.TargetValue))
	}

	return imported, hashRows, nil
}
