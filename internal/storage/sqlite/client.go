package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/keyfindings/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps PRAGMAs in effect and serializes writers.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, sq: sq.StatementBuilder}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Name() string {
	return "sqlite"
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		scenario_key TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		sources TEXT NOT NULL,
		language TEXT NOT NULL,
		executive_summary TEXT NOT NULL DEFAULT '',
		principal_findings TEXT NOT NULL DEFAULT '',
		pca_analysis TEXT NOT NULL DEFAULT '',
		structure_tag TEXT NOT NULL,
		entries TEXT,
		confidence REAL NOT NULL,
		model_used TEXT NOT NULL,
		provider_used TEXT NOT NULL,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		token_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_accessed_at INTEGER NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 1,
		user_rating INTEGER,
		user_feedback TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_reports_last_accessed ON reports(last_accessed_at);
	CREATE INDEX IF NOT EXISTS idx_reports_tool ON reports(tool_name);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Database schema initialized")

	return nil
}
