// Package alerts stores recent operational alerts posted by plugins.
// The store is intentionally short-lived: entries age out after the
// configured retention window and the table is capped at a maximum row
// count. Anything needing durable history belongs in syslog or a real
// database, not here.
package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Alert is one stored alert entry.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Group     string    `json:"group"`
	Category  string    `json:"category"`
	Alert     string    `json:"alert"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
}

// Filter narrows Recent and Count results. Zero-value fields are
// ignored; Search matches message substrings.
type Filter struct {
	Search   string
	Source   string
	Group    string
	Category string
	Alert    string
	Severity string
}

// Store is the SQLite-backed live alerts store.
type Store struct {
	db        *sql.DB
	retention time.Duration
	maxRows   int
}

// Open opens (and creates if needed) the alerts database at path and
// ensures the alerts table exists.
func Open(ctx context.Context, path string, retention time.Duration, maxRows int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("alerts db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create alerts directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open alerts db: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Store{db: db, retention: retention, maxRows: maxRows}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  source    TEXT,
  "group"   TEXT,
  category  TEXT,
  alert     TEXT,
  severity  TEXT,
  message   TEXT
);`,
		`CREATE INDEX IF NOT EXISTS alerts_timestamp_idx ON alerts(timestamp);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap alerts db: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Log records one alert. A zero timestamp is replaced with now.
func (s *Store) Log(ctx context.Context, a Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (timestamp, source, "group", category, alert, severity, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Timestamp.UTC().Format(time.RFC3339Nano),
		a.Source, a.Group, a.Category, a.Alert, a.Severity, a.Message)
	if err != nil {
		return fmt.Errorf("log alert: %w", err)
	}
	return nil
}

// Purge deletes entries past the retention window, then trims the table
// to the configured maximum, newest first.
func (s *Store) Purge(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.retention).Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("purge expired alerts: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE id NOT IN (
		   SELECT id FROM alerts ORDER BY timestamp DESC, id DESC LIMIT ?
		 )`, s.maxRows)
	if err != nil {
		return fmt.Errorf("trim alerts: %w", err)
	}
	return nil
}

// Recent returns alerts within the retention window matching f, newest
// first. limit <= 0 means no pagination.
func (s *Store) Recent(ctx context.Context, f Filter, offset, limit int) ([]Alert, error) {
	query, params := s.buildQuery(false, f)
	query += ` ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		params = append(params, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		var ts string
		if err := rows.Scan(&ts, &a.Source, &a.Group, &a.Category, &a.Alert, &a.Severity, &a.Message); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Count returns the number of alerts within the retention window
// matching f.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	query, params := s.buildQuery(true, f)
	var n int
	if err := s.db.QueryRowContext(ctx, query, params...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

func (s *Store) buildQuery(count bool, f Filter) (string, []any) {
	var b strings.Builder
	if count {
		b.WriteString(`SELECT COUNT(*) FROM alerts WHERE timestamp >= ?`)
	} else {
		b.WriteString(`SELECT timestamp, source, "group", category, alert, severity, message FROM alerts WHERE timestamp >= ?`)
	}
	cutoff := time.Now().UTC().Add(-s.retention).Format(time.RFC3339Nano)
	params := []any{cutoff}

	if f.Search != "" {
		b.WriteString(` AND message LIKE ?`)
		params = append(params, "%"+f.Search+"%")
	}
	for _, c := range []struct {
		col string
		val string
	}{
		{`source`, f.Source},
		{`"group"`, f.Group},
		{`category`, f.Category},
		{`alert`, f.Alert},
		{`severity`, f.Severity},
	} {
		if c.val != "" {
			b.WriteString(` AND ` + c.col + ` = ?`)
			params = append(params, c.val)
		}
	}
	return b.String(), params
}
