package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore persists reports in PostgreSQL.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore opens a connection pool and ensures the report table
// exists.
func NewPostgresStore(connectionString, table string) (*PostgresStore, error) {
	if table == "" {
		table = "csp_reports"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db, table: table}
	if err := store.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) createTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			received_at TIMESTAMPTZ NOT NULL,
			user_agent TEXT,
			body JSONB NOT NULL
		)`, s.table)
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_received_at_idx ON %s (received_at DESC)`,
		s.table, s.table,
	)
	if _, err := s.db.Exec(index); err != nil {
		return fmt.Errorf("create index on %s: %w", s.table, err)
	}
	return nil
}

// Save records one report.
func (s *PostgresStore) Save(ctx context.Context, report Report) error {
	body, err := json.Marshal(report.Body)
	if err != nil {
		return fmt.Errorf("marshal report body: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (id, received_at, user_agent, body) VALUES ($1, $2, $3, $4)`,
		s.table,
	)
	if _, err := s.db.ExecContext(ctx, query, report.ID, report.ReceivedAt, report.UserAgent, body); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// List returns up to limit reports, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(
		`SELECT id, received_at, user_agent, body FROM %s ORDER BY received_at DESC LIMIT $1`,
		s.table,
	)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var (
			report Report
			body   []byte
		)
		if err := rows.Scan(&report.ID, &report.ReceivedAt, &report.UserAgent, &body); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal(body, &report.Body); err != nil {
			return nil, fmt.Errorf("unmarshal report body: %w", err)
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
