// Package journal stores a record of every dispatched tool call.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"billtool/internal/db"
	"billtool/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tool_calls (
		id          TEXT PRIMARY KEY,
		tool        TEXT NOT NULL,
		started_at  INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS tool_calls_started ON tool_calls (started_at)`,
	`CREATE INDEX IF NOT EXISTS tool_calls_tool ON tool_calls (tool, started_at)`,
}

// newID is replaceable in tests.
var newID = func() string { return ulid.Make().String() }

// row is the stored form; timestamps are unix milliseconds so both drivers
// scan them the same way.
type row struct {
	ID         string `db:"id"`
	Tool       string `db:"tool"`
	StartedAt  int64  `db:"started_at"`
	DurationMS int64  `db:"duration_ms"`
	Outcome    string `db:"outcome"`
	Error      string `db:"error"`
}

func (r row) record() domain.CallRecord {
	return domain.CallRecord{
		ID:         r.ID,
		Tool:       r.Tool,
		StartedAt:  time.UnixMilli(r.StartedAt).UTC(),
		DurationMS: r.DurationMS,
		Outcome:    domain.Outcome(r.Outcome),
		Error:      r.Error,
	}
}

// Store is a sqlx-backed journal. It implements domain.CallRecorder.
type Store struct {
	db *sqlx.DB
}

// Open connects to dbURL and creates the schema.
func Open(ctx context.Context, dbURL string) (*Store, error) {
	conn, err := db.Connect(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection and creates the schema.
func New(ctx context.Context, conn *sqlx.DB) (*Store, error) {
	if err := db.Migrate(ctx, conn, schema...); err != nil {
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Store{db: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Record stores rec. An empty ID gets a new ULID.
func (s *Store) Record(ctx context.Context, rec domain.CallRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO tool_calls (id, tool, started_at, duration_ms, outcome, error)
		 VALUES (:id, :tool, :started_at, :duration_ms, :outcome, :error)`,
		row{
			ID:         rec.ID,
			Tool:       rec.Tool,
			StartedAt:  rec.StartedAt.UnixMilli(),
			DurationMS: rec.DurationMS,
			Outcome:    string(rec.Outcome),
			Error:      rec.Error,
		})
	if err != nil {
		return fmt.Errorf("journal record %s: %w", rec.Tool, err)
	}
	return nil
}

// Filter narrows List. Zero values mean no constraint.
type Filter struct {
	Tool    string
	Outcome domain.Outcome
	Since   time.Time
	Limit   int
}

const defaultLimit = 50

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]domain.CallRecord, error) {
	q := `SELECT id, tool, started_at, duration_ms, outcome, error FROM tool_calls WHERE 1=1`
	var args []any
	if f.Tool != "" {
		q += ` AND tool = ?`
		args = append(args, f.Tool)
	}
	if f.Outcome != "" {
		q += ` AND outcome = ?`
		args = append(args, string(f.Outcome))
	}
	if !f.Since.IsZero() {
		q += ` AND started_at >= ?`
		args = append(args, f.Since.UnixMilli())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	q += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("journal list: %w", err)
	}
	out := make([]domain.CallRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// ToolSummary aggregates calls of one tool.
type ToolSummary struct {
	Tool          string  `db:"tool" json:"tool"`
	Calls         int     `db:"calls" json:"calls"`
	Failures      int     `db:"failures" json:"failures"`
	AvgDurationMS float64 `db:"avg_duration_ms" json:"avgDurationMs"`
}

// Summary aggregates calls per tool since the given time, busiest first.
func (s *Store) Summary(ctx context.Context, since time.Time) ([]ToolSummary, error) {
	var out []ToolSummary
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT tool,
		       COUNT(*) AS calls,
		       SUM(CASE WHEN outcome = 'ok' THEN 0 ELSE 1 END) AS failures,
		       AVG(duration_ms) AS avg_duration_ms
		FROM tool_calls
		WHERE started_at >= ?
		GROUP BY tool
		ORDER BY calls DESC, tool ASC`), since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("journal summary: %w", err)
	}
	return out, nil
}

// Prune deletes records older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM tool_calls WHERE started_at < ?`), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("journal prune: %w", err)
	}
	return res.RowsAffected()
}

var _ domain.CallRecorder = (*Store)(nil)
