package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/liaxp/backend/internal/storage/models"
)

func (c *Client) UpsertMessageSchedule(schedule *models.MessageSchedule) error {
	query := `
		INSERT INTO message_schedules (id, company_id, moment, cron_expr, enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id, moment) DO UPDATE SET
			cron_expr = excluded.cron_expr,
			enabled = excluded.enabled
	`

	enabled := 0
	if schedule.Enabled {
		enabled = 1
	}

	_, err := c.db.Exec(
		query,
		schedule.ID,
		schedule.CompanyID,
		schedule.Moment,
		schedule.CronExpr,
		enabled,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert message schedule: %w", err)
	}

	return nil
}

// GetMessageSchedule returns the stored row for a (tenant, moment) pair. An
// upsert that hit the conflict branch keeps the original ID, so callers must
// re-read instead of trusting the ID they submitted.
func (c *Client) GetMessageSchedule(companyID, moment string) (*models.MessageSchedule, error) {
	query := `SELECT id, company_id, moment, cron_expr, enabled
		FROM message_schedules WHERE company_id = ? AND moment = ?`

	var s models.MessageSchedule
	var enabled int

	err := c.db.QueryRow(query, companyID, moment).Scan(&s.ID, &s.CompanyID, &s.Moment, &s.CronExpr, &enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message schedule: %w", err)
	}

	s.Enabled = enabled == 1
	return &s, nil
}

// ListEnabledSchedules returns every enabled trigger across all tenants.
// The scheduler loads these once at startup.
func (c *Client) ListEnabledSchedules() ([]models.MessageSchedule, error) {
	query := `SELECT id, company_id, moment, cron_expr, enabled
		FROM message_schedules WHERE enabled = 1 ORDER BY company_id, moment`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.MessageSchedule
	for rows.Next() {
		var s models.MessageSchedule
		var enabled int

		err := rows.Scan(&s.ID, &s.CompanyID, &s.Moment, &s.CronExpr, &enabled)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.Enabled = enabled == 1
		schedules = append(schedules, s)
	}

	return schedules, rows.Err()
}
