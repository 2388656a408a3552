// Package store persists the audit trail: session summaries and the
// append-only attribution log keyed by session id.
package store

import (
	"context"
	"time"

	"github.com/finsight-labs/finsight/internal/attribution"
)

// SessionSummary is the durable record of one finished analysis session.
type SessionSummary struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Stage       string    `json:"stage"`
	FactCount   int       `json:"fact_count"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

// AuditStore defines the persistence interface for session audit data.
// Attribution records are append-only; sessions upsert by id.
type AuditStore interface {
	SaveSession(ctx context.Context, summary SessionSummary) error
	AppendAttributions(ctx context.Context, sessionID string, records []attribution.Record) error
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
	SessionAttributions(ctx context.Context, sessionID string) ([]attribution.Record, error)
	Migrate(ctx context.Context) error
	Close() error
}
