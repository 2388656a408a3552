package fetchcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/provider"
)

func TestKeyIncludesCanonicalParams(t *testing.T) {
	a := NewKey(capability.Profile, "ACME", provider.Params{"period": "annual", "limit": "1"})
	b := NewKey(capability.Profile, "ACME", provider.Params{"limit": "1", "period": "annual"})
	c := NewKey(capability.Profile, "ACME", provider.Params{"period": "quarterly"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, NewKey(capability.Quote, "ACME", provider.Params{"period": "annual", "limit": "1"}))
	assert.NotEqual(t, a, NewKey(capability.Profile, "OTHER", provider.Params{"period": "annual", "limit": "1"}))
}

func TestGetPutRoundTrip(t *testing.T) {
	c := New[string](time.Minute)
	key := NewKey(capability.Quote, "ACME", nil)

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, "cached")
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "cached", got)
}

func TestExpiredEntryNeverServed(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := New[string](time.Minute).WithNow(func() time.Time { return now })
	key := NewKey(capability.Quote, "ACME", nil)

	c.Put(key, "cached")

	now = now.Add(time.Minute)
	_, ok := c.Get(key)
	assert.False(t, ok)
	// The expired entry is dropped on read.
	assert.Equal(t, 0, c.Len())
}

func TestPutTTLOverride(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := New[int](time.Minute).WithNow(func() time.Time { return now })
	key := NewKey(capability.Ratios, "ACME", nil)

	c.PutTTL(key, 7, time.Hour)

	now = now.Add(30 * time.Minute)
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestPruneExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := New[int](time.Minute).WithNow(func() time.Time { return now })

	c.Put(NewKey(capability.Quote, "A", nil), 1)
	c.PutTTL(NewKey(capability.Quote, "B", nil), 2, time.Hour)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, c.PruneExpired())
	assert.Equal(t, 1, c.Len())
}

func TestZeroTTLFallsBackToDefault(t *testing.T) {
	c := New[int](0)
	assert.Equal(t, DefaultTTL, c.ttl)
}
