package store

import (
	"context"
	"sort"
	"sync"

	"github.com/finsight-labs/finsight/internal/attribution"
)

// MemoryStore is an in-memory AuditStore for tests and for running without
// an audit database configured.
type MemoryStore struct {
	mu           sync.Mutex
	sessions     map[string]SessionSummary
	attributions map[string][]attribution.Record
}

// NewMemory creates an empty in-memory audit store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]SessionSummary),
		attributions: make(map[string][]attribution.Record),
	}
}

// Migrate is a no-op.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// SaveSession upserts a session summary.
func (m *MemoryStore) SaveSession(_ context.Context, summary SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[summary.ID] = summary
	return nil
}

// AppendAttributions appends records for a session.
func (m *MemoryStore) AppendAttributions(_ context.Context, sessionID string, records []attribution.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributions[sessionID] = append(m.attributions[sessionID], records...)
	return nil
}

// ListSessions returns summaries newest-first.
func (m *MemoryStore) ListSessions(_ context.Context, limit int) ([]SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SessionAttributions returns the append-order log for a session.
func (m *MemoryStore) SessionAttributions(_ context.Context, sessionID string) ([]attribution.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.attributions[sessionID]
	out := make([]attribution.Record, len(recs))
	copy(out, recs)
	return out, nil
}
