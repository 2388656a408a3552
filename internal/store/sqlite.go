package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/finsight-labs/finsight/internal/attribution"
)

// SQLiteStore implements AuditStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	subject      TEXT NOT NULL,
	stage        TEXT NOT NULL,
	fact_count   INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attributions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	capability  TEXT NOT NULL,
	subject     TEXT NOT NULL,
	record      TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_subject ON sessions(subject);
CREATE INDEX IF NOT EXISTS idx_attributions_session_id ON attributions(session_id);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession upserts a session summary.
func (s *SQLiteStore) SaveSession(ctx context.Context, summary SessionSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, subject, stage, fact_count, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   stage = excluded.stage,
		   fact_count = excluded.fact_count,
		   error = excluded.error,
		   completed_at = excluded.completed_at`,
		summary.ID, summary.Subject, summary.Stage, summary.FactCount,
		nullable(summary.Error), summary.StartedAt.UTC(), summary.CompletedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save session %s", summary.ID)
}

// AppendAttributions appends attribution records for a session. Existing
// rows are never updated or deleted.
func (s *SQLiteStore) AppendAttributions(ctx context.Context, sessionID string, records []attribution.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append attributions")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO attributions (session_id, capability, subject, record, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare append attributions")
	}
	defer stmt.Close()

	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal attribution")
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID, string(r.Capability), r.Subject, string(payload), time.Now().UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: append attribution for %s", sessionID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit append attributions")
}

// ListSessions returns the most recent session summaries.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject, stage, fact_count, COALESCE(error, ''), started_at, completed_at
		 FROM sessions ORDER BY completed_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Subject, &sum.Stage, &sum.FactCount,
			&sum.Error, &sum.StartedAt, &sum.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sessions")
}

// SessionAttributions returns the attribution log for a session in append
// order.
func (s *SQLiteStore) SessionAttributions(ctx context.Context, sessionID string) ([]attribution.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM attributions WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: attributions for %s", sessionID)
	}
	defer rows.Close()

	var out []attribution.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attribution")
		}
		var rec attribution.Record
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal attribution")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate attributions")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
