package calllog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store persists call records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the call log database at dbPath and ensures the
// schema exists. WAL mode keeps concurrent page workers from blocking each
// other on audit writes.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening call log database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id              TEXT PRIMARY KEY,
			timestamp       DATETIME NOT NULL,
			latency_ms      INTEGER NOT NULL DEFAULT 0,
			verification_id TEXT NOT NULL DEFAULT '',
			document        TEXT NOT NULL DEFAULT '',
			page            INTEGER NOT NULL DEFAULT 0,
			kind            TEXT NOT NULL,
			provider        TEXT NOT NULL,
			model           TEXT NOT NULL DEFAULT '',
			input_tokens    INTEGER NOT NULL DEFAULT 0,
			output_tokens   INTEGER NOT NULL DEFAULT 0,
			cost_usd        REAL NOT NULL DEFAULT 0,
			success         INTEGER NOT NULL,
			error           TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_calls_timestamp ON calls(timestamp);
		CREATE INDEX IF NOT EXISTS idx_calls_verification ON calls(verification_id);
	`)
	if err != nil {
		return fmt.Errorf("creating calls table: %w", err)
	}
	return nil
}

// Insert writes a call record.
func (s *Store) Insert(ctx context.Context, call *Call) error {
	if call == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (
			id, timestamp, latency_ms, verification_id, document, page,
			kind, provider, model, input_tokens, output_tokens, cost_usd,
			success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID,
		call.Timestamp.UTC().Format(time.RFC3339Nano),
		call.LatencyMs,
		call.VerificationID,
		call.Document,
		call.Page,
		call.Kind,
		call.Provider,
		call.Model,
		call.InputTokens,
		call.OutputTokens,
		call.CostUSD,
		boolToInt(call.Success),
		call.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}
	return nil
}

// Recent returns the most recent calls, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, latency_ms, verification_id, document, page,
		       kind, provider, model, input_tokens, output_tokens, cost_usd,
		       success, error
		FROM calls
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent calls: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// ByVerification returns all calls recorded for one verification run,
// oldest first.
func (s *Store) ByVerification(ctx context.Context, verificationID string) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, latency_ms, verification_id, document, page,
		       kind, provider, model, input_tokens, output_tokens, cost_usd,
		       success, error
		FROM calls
		WHERE verification_id = ?
		ORDER BY timestamp ASC`, verificationID)
	if err != nil {
		return nil, fmt.Errorf("querying calls by verification: %w", err)
	}
	defer rows.Close()

	return scanCalls(rows)
}

// CountByProvider returns call counts grouped by provider name.
func (s *Store) CountByProvider(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*) FROM calls GROUP BY provider`)
	if err != nil {
		return nil, fmt.Errorf("counting calls by provider: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, fmt.Errorf("scanning provider count: %w", err)
		}
		counts[provider] = count
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanCalls(rows *sql.Rows) ([]Call, error) {
	var calls []Call
	for rows.Next() {
		var c Call
		var ts string
		var success int
		if err := rows.Scan(
			&c.ID, &ts, &c.LatencyMs, &c.VerificationID, &c.Document, &c.Page,
			&c.Kind, &c.Provider, &c.Model, &c.InputTokens, &c.OutputTokens,
			&c.CostUSD, &success, &c.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.Timestamp = t
		}
		c.Success = success != 0
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
