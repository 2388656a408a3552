package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight-labs/finsight/internal/capability"
)

func TestRecordAndGet(t *testing.T) {
	l := NewLedger()

	_, ok := l.Get(capability.Profile, "ACME")
	assert.False(t, ok)

	l.Record(Record{
		Capability: capability.Profile,
		Subject:    "ACME",
		Provider:   "fmp",
		Confidence: 90,
		Timestamp:  time.Now().UTC(),
		Success:    true,
	})

	r, ok := l.Get(capability.Profile, "ACME")
	require.True(t, ok)
	assert.Equal(t, "fmp", r.Provider)
	assert.True(t, r.Success)
}

func TestLastOutcomeWins(t *testing.T) {
	l := NewLedger()

	l.Record(Record{Capability: capability.Quote, Subject: "ACME", Provider: "fmp", Success: true})
	l.Record(Record{Capability: capability.Quote, Subject: "ACME", Success: false, Error: "all providers exhausted"})

	r, ok := l.Get(capability.Quote, "ACME")
	require.True(t, ok)
	assert.False(t, r.Success)
	assert.Empty(t, r.Provider)

	// Only one record per pair survives.
	assert.Len(t, l.All(), 1)
}

func TestAllSortedBySubjectThenCapability(t *testing.T) {
	l := NewLedger()
	l.Record(Record{Capability: capability.Quote, Subject: "ZETA", Provider: "fmp"})
	l.Record(Record{Capability: capability.Profile, Subject: "ACME", Provider: "fmp"})
	l.Record(Record{Capability: capability.Quote, Subject: "ACME", Provider: "alphavantage"})

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, "ACME", all[0].Subject)
	assert.Equal(t, capability.Profile, all[0].Capability)
	assert.Equal(t, "ACME", all[1].Subject)
	assert.Equal(t, "ZETA", all[2].Subject)
}
