package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/liaxp/backend/internal/storage/models"
	"github.com/liaxp/backend/pkg/logger"
)

// InsertMessageLog appends one audit row. The log is append-only; only
// UpdateMessageLogStatus may touch an existing row, on provider callbacks.
func (c *Client) InsertMessageLog(entry *models.MessageLogEntry) error {
	query := `
		INSERT INTO message_log (id, company_id, direction, phone_from, phone_to,
			message, provider, external_id, status, sent_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		entry.ID,
		entry.CompanyID,
		entry.Direction,
		entry.PhoneFrom,
		entry.PhoneTo,
		entry.Message,
		entry.Provider,
		nullable(entry.ExternalID),
		entry.Status,
		entry.SentAt.Unix(),
		nullable(entry.ErrorMessage),
	)

	if err != nil {
		return fmt.Errorf("failed to insert message log: %w", err)
	}

	logger.Debug("Message logged",
		zap.String("company_id", entry.CompanyID),
		zap.String("direction", entry.Direction),
		zap.String("status", entry.Status),
	)

	return nil
}

// UpdateMessageLogStatus corrects the status of a logged message when the
// provider reports final delivery via webhook.
func (c *Client) UpdateMessageLogStatus(externalID, status string) (bool, error) {
	query := `UPDATE message_log SET status = ? WHERE external_id = ?`

	result, err := c.db.Exec(query, status, externalID)
	if err != nil {
		return false, fmt.Errorf("failed to update message log status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (c *Client) ListMessageLog(companyID string, limit int) ([]models.MessageLogEntry, error) {
	query := `SELECT id, company_id, direction, phone_from, phone_to, message,
			provider, external_id, status, sent_at, error_message
		FROM message_log WHERE company_id = ?
		ORDER BY sent_at DESC LIMIT ?`

	rows, err := c.db.Query(query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list message log: %w", err)
	}
	defer rows.Close()

	var entries []models.MessageLogEntry
	for rows.Next() {
		var e models.MessageLogEntry
		var externalID, errMsg sql.NullString
		var sentAt int64

		err := rows.Scan(&e.ID, &e.CompanyID, &e.Direction, &e.PhoneFrom, &e.PhoneTo,
			&e.Message, &e.Provider, &externalID, &e.Status, &sentAt, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.ExternalID = externalID.String
		e.ErrorMessage = errMsg.String
		e.SentAt = time.Unix(sentAt, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (c *Client) InsertChatMessage(msg *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, company_id, phone_e164, direction, message, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		msg.ID,
		msg.CompanyID,
		msg.PhoneE164,
		msg.Direction,
		msg.Message,
		nullable(msg.Intent),
		msg.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}

func (c *Client) ListChatHistory(companyID, phoneE164 string, limit int) ([]models.ChatMessage, error) {
	query := `SELECT id, company_id, phone_e164, direction, message, intent, created_at
		FROM chat_messages WHERE company_id = ? AND phone_e164 = ?
		ORDER BY created_at DESC LIMIT ?`

	rows, err := c.db.Query(query, companyID, phoneE164, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var intent sql.NullString
		var createdAt int64

		err := rows.Scan(&m.ID, &m.CompanyID, &m.PhoneE164, &m.Direction, &m.Message, &intent, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.Intent = intent.String
		m.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
