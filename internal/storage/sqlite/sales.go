package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/liaxp/backend/internal/storage/models"
)

func (c *Client) UpsertCompany(company *models.Company) error {
	query := `
		INSERT INTO companies (id, code, name, description, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			is_active = excluded.is_active
	`

	isActive := 0
	if company.IsActive {
		isActive = 1
	}

	_, err := c.db.Exec(
		query,
		company.ID,
		company.Code,
		company.Name,
		company.Description,
		isActive,
		company.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}

	return nil
}

func (c *Client) GetCompanyByCode(code string) (*models.Company, error) {
	query := `SELECT id, code, name, description, is_active, created_at FROM companies WHERE code = ?`

	var company models.Company
	var description sql.NullString
	var isActive int
	var createdAt int64

	err := c.db.QueryRow(query, code).Scan(
		&company.ID,
		&company.Code,
		&company.Name,
		&description,
		&isActive,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	company.Description = description.String
	company.IsActive = isActive == 1
	company.CreatedAt = time.Unix(createdAt, 0)

	return &company, nil
}

func (c *Client) UpsertSeller(seller *models.Seller) error {
	query := `
		INSERT INTO sellers (id, company_id, store_id, seller_code, name, phone_e164, email, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, seller_code) DO UPDATE SET
			store_id = excluded.store_id,
			name = excluded.name,
			phone_e164 = excluded.phone_e164,
			email = excluded.email,
			status = excluded.status
	`

	_, err := c.db.Exec(
		query,
		seller.ID,
		seller.CompanyID,
		seller.StoreID,
		seller.SellerCode,
		seller.Name,
		seller.PhoneE164,
		seller.Email,
		seller.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert seller: %w", err)
	}

	return nil
}

func (c *Client) GetSellerByID(id string) (*models.Seller, error) {
	query := `SELECT id, company_id, store_id, seller_code, name, phone_e164, email, status FROM sellers WHERE id = ?`
	return c.scanSeller(c.db.QueryRow(query, id))
}

func (c *Client) GetSellerByPhone(companyID, phoneE164 string) (*models.Seller, error) {
	query := `SELECT id, company_id, store_id, seller_code, name, phone_e164, email, status
		FROM sellers WHERE company_id = ? AND phone_e164 = ?`
	return c.scanSeller(c.db.QueryRow(query, companyID, phoneE164))
}

func (c *Client) ListSellersByCompany(companyID string) ([]models.Seller, error) {
	query := `SELECT id, company_id, store_id, seller_code, name, phone_e164, email, status
		FROM sellers WHERE company_id = ? AND status = 'Active' ORDER BY seller_code`

	rows, err := c.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}
	defer rows.Close()

	var sellers []models.Seller
	for rows.Next() {
		var s models.Seller
		var storeID, phone, email sql.NullString

		err := rows.Scan(&s.ID, &s.CompanyID, &storeID, &s.SellerCode, &s.Name, &phone, &email, &s.Status)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.StoreID = storeID.String
		s.PhoneE164 = phone.String
		s.Email = email.String
		sellers = append(sellers, s)
	}

	return sellers, rows.Err()
}

func (c *Client) scanSeller(row *sql.Row) (*models.Seller, error) {
	var s models.Seller
	var storeID, phone, email sql.NullString

	err := row.Scan(&s.ID, &s.CompanyID, &storeID, &s.SellerCode, &s.Name, &phone, &email, &s.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}

	s.StoreID = storeID.String
	s.PhoneE164 = phone.String
	s.Email = email.String

	return &s, nil
}

func (c *Client) InsertSale(sale *models.Sale) error {
	query := `
		INSERT INTO sales (id, company_id, store_id, seller_id, sale_date, total_value, items_qty, avg_ticket, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_value = excluded.total_value,
			items_qty = excluded.items_qty,
			avg_ticket = excluded.avg_ticket,
			category = excluded.category
	`

	_, err := c.db.Exec(
		query,
		sale.ID,
		sale.CompanyID,
		sale.StoreID,
		sale.SellerID,
		sale.SaleDate.Unix(),
		sale.TotalValue,
		sale.ItemsQty,
		sale.AvgTicket,
		sale.Category,
	)

	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	return nil
}

func (c *Client) GetSalesByCompany(companyID string, start, end time.Time) ([]models.Sale, error) {
	query := `SELECT id, company_id, store_id, seller_id, sale_date, total_value, items_qty, avg_ticket, category
		FROM sales WHERE company_id = ? AND sale_date >= ? AND sale_date <= ? ORDER BY sale_date, id`
	return c.querySales(query, companyID, start.Unix(), end.Unix())
}

func (c *Client) GetSalesBySeller(sellerID string, start, end time.Time) ([]models.Sale, error) {
	query := `SELECT id, company_id, store_id, seller_id, sale_date, total_value, items_qty, avg_ticket, category
		FROM sales WHERE seller_id = ? AND sale_date >= ? AND sale_date <= ? ORDER BY sale_date, id`
	return c.querySales(query, sellerID, start.Unix(), end.Unix())
}

func (c *Client) GetSalesByStore(storeID string, start, end time.Time) ([]models.Sale, error) {
	query := `SELECT id, company_id, store_id, seller_id, sale_date, total_value, items_qty, avg_ticket, category
		FROM sales WHERE store_id = ? AND sale_date >= ? AND sale_date <= ? ORDER BY sale_date, id`
	return c.querySales(query, storeID, start.Unix(), end.Unix())
}

func (c *Client) querySales(query string, args ...interface{}) ([]models.Sale, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		var s models.Sale
		var storeID, category sql.NullString
		var saleDate int64

		err := rows.Scan(&s.ID, &s.CompanyID, &storeID, &s.SellerID, &saleDate, &s.TotalValue, &s.ItemsQty, &s.AvgTicket, &category)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.StoreID = storeID.String
		s.Category = category.String
		s.SaleDate = time.Unix(saleDate, 0)
		sales = append(sales, s)
	}

	return sales, rows.Err()
}

func (c *Client) InsertGoal(goal *models.Goal) error {
	query := `
		INSERT INTO goals (id, company_id, store_id, seller_id, month, target_value, target_ticket)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_value = excluded.target_value,
			target_ticket = excluded.target_ticket
	`

	_, err := c.db.Exec(
		query,
		goal.ID,
		goal.CompanyID,
		goal.StoreID,
		goal.SellerID,
		monthStart(goal.Month).Unix(),
		goal.TargetValue,
		goal.TargetTicket,
	)

	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}

	return nil
}

func (c *Client) GetGoalsByCompany(companyID string, month time.Time) ([]models.Goal, error) {
	query := `SELECT id, company_id, store_id, seller_id, month, target_value, target_ticket
		FROM goals WHERE company_id = ? AND month = ?`
	return c.queryGoals(query, companyID, monthStart(month).Unix())
}

func (c *Client) GetGoalsBySeller(sellerID string, month time.Time) ([]models.Goal, error) {
	query := `SELECT id, company_id, store_id, seller_id, month, target_value, target_ticket
		FROM goals WHERE seller_id = ? AND month = ?`
	return c.queryGoals(query, sellerID, monthStart(month).Unix())
}

func (c *Client) queryGoals(query string, args ...interface{}) ([]models.Goal, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		var g models.Goal
		var storeID sql.NullString
		var targetTicket sql.NullFloat64
		var month int64

		err := rows.Scan(&g.ID, &g.CompanyID, &storeID, &g.SellerID, &month, &g.TargetValue, &targetTicket)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		g.StoreID = storeID.String
		g.TargetTicket = targetTicket.Float64
		g.Month = time.Unix(month, 0)
		goals = append(goals, g)
	}

	return goals, rows.Err()
}

// monthStart is the goal lookup key: the calendar month as seen in t's own
// zone, pinned to UTC so a goal written from one zone matches a query from
// another.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
