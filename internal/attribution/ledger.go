// Package attribution records which provider satisfied each fetch so every
// displayed value can be traced back to its source.
package attribution

import (
	"sort"
	"sync"
	"time"

	"github.com/finsight-labs/finsight/internal/capability"
)

// Record is the final outcome for one (capability, subject) pair. Only the
// final outcome is retained; a new fetch for the same pair overwrites the
// prior record.
type Record struct {
	Capability capability.Capability `json:"capability"`
	Subject    string                `json:"subject"`
	Provider   string                `json:"provider,omitempty"`
	Confidence int                   `json:"confidence"`
	Timestamp  time.Time             `json:"timestamp"`
	Endpoint   string                `json:"endpoint,omitempty"`
	Success    bool                  `json:"success"`
	Error      string                `json:"error,omitempty"`
}

type key struct {
	cap     capability.Capability
	subject string
}

// Ledger is an in-memory attribution store. Append-safe across concurrent
// sessions; no further cross-request synchronization is needed.
type Ledger struct {
	mu      sync.Mutex
	records map[key]Record
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[key]Record)}
}

// Record stores the outcome, replacing any prior record for the same
// capability/subject pair.
func (l *Ledger) Record(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[key{cap: r.Capability, subject: r.Subject}] = r
}

// Get returns the record for a capability/subject pair, if any.
func (l *Ledger) Get(c capability.Capability, subject string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key{cap: c, subject: subject}]
	return r, ok
}

// All returns every record ordered by subject then capability.
func (l *Ledger) All() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Capability < out[j].Capability
	})
	return out
}
