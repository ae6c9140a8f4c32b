package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/yug-sinha/Multi-Agentic-Real-Estate-Chatbot/internal/domain"
)

// DefaultListLimit caps ListExchanges when the caller passes no limit.
const DefaultListLimit = 50

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to an in-memory database gets its own copy.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_reset_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS exchanges (
			exchange_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			query TEXT NOT NULL,
			agent TEXT,
			response TEXT,
			error TEXT,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Logs written before attachments were recorded lack this column.
	return s.ensureColumn("exchanges", "attachment_name", "ALTER TABLE exchanges ADD COLUMN attachment_name TEXT")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSession returns the session, creating it on first sight.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, created_at) VALUES (?, ?)`,
		sessionID, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.GetSession(ctx, sessionID)
}

// GetSession retrieves a session by ID. It returns nil, nil when absent.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var lastReset sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, created_at, last_reset_at FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&session.SessionID, &session.CreatedAt, &lastReset)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if lastReset.Valid {
		t := lastReset.Time
		session.LastResetAt = &t
	}
	return &session, nil
}

// ClearSession drops every exchange of the session and stamps the reset time.
func (s *SQLiteStore) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := s.EnsureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exchanges WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete exchanges: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_reset_at = ? WHERE session_id = ?`,
		s.now(), sessionID,
	); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

// RecordExchange stores an exchange, filling in its ID and timestamp when unset.
func (s *SQLiteStore) RecordExchange(ctx context.Context, exchange *domain.Exchange) error {
	if exchange == nil {
		return fmt.Errorf("exchange is nil")
	}
	if _, err := s.EnsureSession(ctx, exchange.SessionID); err != nil {
		return err
	}
	if exchange.ExchangeID == "" {
		exchange.ExchangeID = "ex_" + uuid.New().String()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (exchange_id, session_id, query, attachment_name, agent, response, error, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exchange.ExchangeID, exchange.SessionID, exchange.Query,
		nullString(exchange.AttachmentName), nullString(exchange.Agent),
		nullString(exchange.Response), nullString(exchange.Error),
		string(exchange.Status), exchange.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// ListExchanges returns the most recent exchanges of a session, oldest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, sessionID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT exchange_id, session_id, query, attachment_name, agent, response, error, status, created_at
		 FROM (
			SELECT rowid AS seq, * FROM exchanges WHERE session_id = ?
			ORDER BY created_at DESC, seq DESC LIMIT ?
		 ) ORDER BY created_at ASC, seq ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := []domain.Exchange{}
	for rows.Next() {
		var ex domain.Exchange
		var attachment, agent, response, errText sql.NullString
		var status string
		if err := rows.Scan(&ex.ExchangeID, &ex.SessionID, &ex.Query, &attachment, &agent, &response, &errText, &status, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		ex.AttachmentName = attachment.String
		ex.Agent = agent.String
		ex.Response = response.String
		ex.Error = errText.String
		ex.Status = domain.ExchangeStatus(status)
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
