package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/liaxp/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_companies_code ON companies(code);

	CREATE TABLE IF NOT EXISTS stores (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);
	CREATE INDEX IF NOT EXISTS idx_stores_company ON stores(company_id);

	CREATE TABLE IF NOT EXISTS sellers (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		store_id TEXT,
		seller_code TEXT NOT NULL,
		name TEXT NOT NULL,
		phone_e164 TEXT,
		email TEXT,
		status TEXT NOT NULL DEFAULT 'Active',
		FOREIGN KEY (company_id) REFERENCES companies(id),
		UNIQUE (company_id, seller_code)
	);
	CREATE INDEX IF NOT EXISTS idx_sellers_company ON sellers(company_id);
	CREATE INDEX IF NOT EXISTS idx_sellers_phone ON sellers(company_id, phone_e164);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		store_id TEXT,
		seller_id TEXT NOT NULL,
		sale_date INTEGER NOT NULL,
		total_value REAL NOT NULL,
		items_qty INTEGER NOT NULL,
		avg_ticket REAL NOT NULL,
		category TEXT,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);
	CREATE INDEX IF NOT EXISTS idx_sales_company_date ON sales(company_id, sale_date);
	CREATE INDEX IF NOT EXISTS idx_sales_seller_date ON sales(seller_id, sale_date);

	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		store_id TEXT,
		seller_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		target_value REAL NOT NULL,
		target_ticket REAL,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);
	CREATE INDEX IF NOT EXISTS idx_goals_company_month ON goals(company_id, month);
	CREATE INDEX IF NOT EXISTS idx_goals_seller_month ON goals(seller_id, month);

	CREATE TABLE IF NOT EXISTS import_status (
		company_id TEXT PRIMARY KEY,
		file_hash TEXT NOT NULL,
		imported_at INTEGER NOT NULL,
		last_trained_hash TEXT,
		last_trained_at INTEGER,
		is_stale INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);

	CREATE TABLE IF NOT EXISTS insight_cache (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		store_id TEXT,
		seller_id TEXT,
		insight_date INTEGER NOT NULL,
		insight_type TEXT NOT NULL,
		data_json TEXT NOT NULL,
		cached_at INTEGER NOT NULL,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);
	CREATE INDEX IF NOT EXISTS idx_insight_company ON insight_cache(company_id, insight_type, cached_at);
	CREATE INDEX IF NOT EXISTS idx_insight_seller ON insight_cache(seller_id, cached_at);

	CREATE TABLE IF NOT EXISTS review_queue (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		moment TEXT NOT NULL,
		recipient_phone TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		draft_message TEXT NOT NULL,
		edited_message TEXT,
		status TEXT NOT NULL DEFAULT 'Pending',
		reviewed_at INTEGER,
		reviewed_by TEXT,
		sent_at INTEGER,
		error_message TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);
	CREATE INDEX IF NOT EXISTS idx_review_company_status ON review_queue(company_id, status);

	CREATE TABLE IF NOT EXISTS message_log (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		phone_from TEXT NOT NULL,
		phone_to TEXT NOT NULL,
		message TEXT NOT NULL,
		provider TEXT NOT NULL,
		external_id TEXT,
		status TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		error_message TEXT,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);
	CREATE INDEX IF NOT EXISTS idx_msglog_company_sent ON message_log(company_id, sent_at);
	CREATE INDEX IF NOT EXISTS idx_msglog_external ON message_log(external_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		phone_e164 TEXT NOT NULL,
		direction TEXT NOT NULL,
		message TEXT NOT NULL,
		intent TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (company_id) REFERENCES companies(id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_company_phone ON chat_messages(company_id, phone_e164, created_at);

	CREATE TABLE IF NOT EXISTS message_schedules (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		moment TEXT NOT NULL,
		cron_expr TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (company_id) REFERENCES companies(id),
		UNIQUE (company_id, moment)
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}
