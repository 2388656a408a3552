// Package ratelimit tracks per-provider cool-down state. State lives for
// the process lifetime only; cool-downs are short-lived by design.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultThrottleCooldown applies after a 429-equivalent response.
	DefaultThrottleCooldown = 2 * time.Minute
	// DefaultUnauthorizedCooldown applies after a 401/403-equivalent
	// response. Much longer: a credential or plan problem will not clear
	// itself in minutes.
	DefaultUnauthorizedCooldown = time.Hour
)

// Tracker records when each provider becomes temporarily unusable. It is
// shared, process-wide state; all methods are safe for concurrent use.
type Tracker struct {
	mu                   sync.Mutex
	limitedUntil         map[string]time.Time
	throttleCooldown     time.Duration
	unauthorizedCooldown time.Duration
	nowFunc              func() time.Time
}

// NewTracker creates a tracker with the given cool-down durations.
// Non-positive durations fall back to the defaults.
func NewTracker(throttle, unauthorized time.Duration) *Tracker {
	if throttle <= 0 {
		throttle = DefaultThrottleCooldown
	}
	if unauthorized <= 0 {
		unauthorized = DefaultUnauthorizedCooldown
	}
	return &Tracker{
		limitedUntil:         make(map[string]time.Time),
		throttleCooldown:     throttle,
		unauthorizedCooldown: unauthorized,
		nowFunc:              time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.nowFunc = now
	return t
}

// IsLimited reports whether the provider is currently cooling down.
func (t *Tracker) IsLimited(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.limitedUntil[provider]
	return ok && t.nowFunc().Before(until)
}

// LimitedUntil returns the end of the provider's cool-down window, or the
// zero time when the provider is not limited.
func (t *Tracker) LimitedUntil(provider string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.limitedUntil[provider]
	if !ok || !t.nowFunc().Before(until) {
		return time.Time{}
	}
	return until
}

// MarkThrottled starts the short throttle cool-down for a provider. A
// positive retryAfter from the provider overrides the configured duration.
func (t *Tracker) MarkThrottled(provider string, retryAfter time.Duration) {
	d := t.throttleCooldown
	if retryAfter > 0 {
		d = retryAfter
	}
	t.mark(provider, d, "throttled")
}

// MarkUnauthorized starts the long authorization cool-down for a provider.
func (t *Tracker) MarkUnauthorized(provider string) {
	t.mark(provider, t.unauthorizedCooldown, "unauthorized")
}

func (t *Tracker) mark(provider string, d time.Duration, reason string) {
	t.mu.Lock()
	until := t.nowFunc().Add(d)
	t.limitedUntil[provider] = until
	t.mu.Unlock()

	zap.L().Warn("ratelimit: provider cooling down",
		zap.String("provider", provider),
		zap.String("reason", reason),
		zap.Time("until", until),
	)
}

// Snapshot returns the currently limited providers and their window ends.
func (t *Tracker) Snapshot() map[string]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFunc()
	out := make(map[string]time.Time)
	for name, until := range t.limitedUntil {
		if now.Before(until) {
			out[name] = until
		}
	}
	return out
}
