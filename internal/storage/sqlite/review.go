package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/liaxp/backend/internal/storage/models"
)

func (c *Client) InsertReviewItem(item *models.ReviewItem) error {
	query := `
		INSERT INTO review_queue (id, company_id, moment, recipient_phone, recipient_name,
			draft_message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		item.ID,
		item.CompanyID,
		item.Moment,
		item.RecipientPhone,
		item.RecipientName,
		item.DraftMessage,
		item.Status,
		item.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert review item: %w", err)
	}

	return nil
}

func (c *Client) GetReviewItem(id string) (*models.ReviewItem, error) {
	query := reviewSelect + ` WHERE id = ?`

	rows, err := c.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get review item: %w", err)
	}
	defer rows.Close()

	items, err := scanReviewItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	item := items[0]
	return &item, nil
}

func (c *Client) ListReviewItemsByStatus(companyID, status string) ([]models.ReviewItem, error) {
	query := reviewSelect + ` WHERE company_id = ? AND status = ? ORDER BY created_at, id`

	rows, err := c.db.Query(query, companyID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}
	defer rows.Close()

	return scanReviewItems(rows)
}

// ListSendableReviewItems returns Approved items that were never delivered,
// optionally filtered by moment. The sent_at guard keeps re-invocations of
// the delivery loop from picking up items already sent.
func (c *Client) ListSendableReviewItems(companyID, moment string) ([]models.ReviewItem, error) {
	query := reviewSelect + ` WHERE company_id = ? AND status = ? AND sent_at IS NULL`
	args := []interface{}{companyID, models.ReviewStatusApproved}

	if moment != "" {
		query += ` AND moment = ?`
		args = append(args, moment)
	}
	query += ` ORDER BY created_at, id`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sendable review items: %w", err)
	}
	defer rows.Close()

	return scanReviewItems(rows)
}

// TransitionReviewItem moves an item from fromStatus to toStatus in a single
// guarded UPDATE. Returns false when the item was not in fromStatus, so an
// invalid transition can never silently succeed.
func (c *Client) TransitionReviewItem(id, fromStatus, toStatus, reviewedBy, errorMessage string, at time.Time) (bool, error) {
	query := `
		UPDATE review_queue
		SET status = ?,
			reviewed_at = ?,
			reviewed_by = ?,
			sent_at = CASE WHEN ? = 'Sent' THEN ? ELSE sent_at END,
			error_message = ?
		WHERE id = ? AND status = ?
	`

	result, err := c.db.Exec(
		query,
		toStatus,
		at.Unix(),
		reviewedBy,
		toStatus,
		at.Unix(),
		nullable(errorMessage),
		id,
		fromStatus,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition review item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// SetReviewEditedMessage stores the reviewer's edit, only while still Pending.
func (c *Client) SetReviewEditedMessage(id, editedMessage string) (bool, error) {
	query := `UPDATE review_queue SET edited_message = ? WHERE id = ? AND status = ?`

	result, err := c.db.Exec(query, editedMessage, id, models.ReviewStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to set edited message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

// MarkReviewDelivered records the delivery outcome for an Approved item.
func (c *Client) MarkReviewDelivered(id, status, errorMessage string, at time.Time) error {
	query := `
		UPDATE review_queue
		SET status = ?,
			sent_at = CASE WHEN ? = 'Sent' THEN ? ELSE sent_at END,
			error_message = ?
		WHERE id = ?
	`

	_, err := c.db.Exec(query, status, status, at.Unix(), nullable(errorMessage), id)
	if err != nil {
		return fmt.Errorf("failed to mark review delivered: %w", err)
	}

	return nil
}

const reviewSelect = `SELECT id, company_id, moment, recipient_phone, recipient_name,
	draft_message, edited_message, status, reviewed_at, reviewed_by, sent_at, error_message, created_at
	FROM review_queue`

func scanReviewItems(rows *sql.Rows) ([]models.ReviewItem, error) {
	var items []models.ReviewItem
	for rows.Next() {
		var item models.ReviewItem
		var edited, reviewedBy, errMsg sql.NullString
		var reviewedAt, sentAt sql.NullInt64
		var createdAt int64

		err := rows.Scan(
			&item.ID,
			&item.CompanyID,
			&item.Moment,
			&item.RecipientPhone,
			&item.RecipientName,
			&item.DraftMessage,
			&edited,
			&item.Status,
			&reviewedAt,
			&reviewedBy,
			&sentAt,
			&errMsg,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		item.EditedMessage = edited.String
		item.ReviewedBy = reviewedBy.String
		item.ErrorMessage = errMsg.String
		if reviewedAt.Valid {
			t := time.Unix(reviewedAt.Int64, 0)
			item.ReviewedAt = &t
		}
		if sentAt.Valid {
			t := time.Unix(sentAt.Int64, 0)
			item.SentAt = &t
		}
		item.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, item)
	}

	return items, rows.Err()
}
