// Package orchestrator implements the fallback fetch cascade: walk a
// capability's provider chain in priority order, skip cooled-down providers,
// cache and attribute the first success, and degrade to a structured
// unavailable result when the chain is exhausted.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finsight-labs/finsight/internal/attribution"
	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/fact"
	"github.com/finsight-labs/finsight/internal/fetchcache"
	"github.com/finsight-labs/finsight/internal/provider"
	"github.com/finsight-labs/finsight/internal/ratelimit"
)

// DefaultCallTimeout bounds a single provider invocation.
const DefaultCallTimeout = 20 * time.Second

// FetchOutcome is the result of one fallback fetch. Available=false means
// every provider in the chain was skipped or failed; Attempted and Guidance
// describe what happened and what the user can do about it.
type FetchOutcome struct {
	Capability capability.Capability `json:"capability"`
	Subject    string                `json:"subject"`
	Available  bool                  `json:"available"`
	Facts      fact.Set              `json:"facts,omitempty"`
	Provider   string                `json:"provider,omitempty"`
	Confidence int                   `json:"confidence,omitempty"`
	Endpoint   string                `json:"endpoint,omitempty"`
	Attempted  []string              `json:"attempted,omitempty"`
	Guidance   string                `json:"guidance,omitempty"`
	FromCache  bool                  `json:"from_cache,omitempty"`
}

// Fetcher walks provider chains with shared rate-limit and cache state.
// All dependencies are injected at construction; nothing is package-global.
type Fetcher struct {
	routing     *capability.Routing
	registry    *provider.Registry
	tracker     *ratelimit.Tracker
	cache       *fetchcache.Cache[FetchOutcome]
	ledger      *attribution.Ledger
	callTimeout time.Duration
}

// NewFetcher creates a fallback fetcher. The tracker and cache may be shared
// with other fetchers; the ledger is typically scoped per analysis session.
func NewFetcher(
	routing *capability.Routing,
	registry *provider.Registry,
	tracker *ratelimit.Tracker,
	cache *fetchcache.Cache[FetchOutcome],
	ledger *attribution.Ledger,
	callTimeout time.Duration,
) *Fetcher {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Fetcher{
		routing:     routing,
		registry:    registry,
		tracker:     tracker,
		cache:       cache,
		ledger:      ledger,
		callTimeout: callTimeout,
	}
}

// WithLedger returns a copy of the fetcher bound to a different attribution
// ledger. Cache and tracker state remain shared.
func (f *Fetcher) WithLedger(ledger *attribution.Ledger) *Fetcher {
	clone := *f
	clone.ledger = ledger
	return &clone
}

// Fetch resolves one capability for a subject through the fallback cascade.
// The walk within one capability is strictly sequential; racing providers
// would waste quota and muddy attribution.
func (f *Fetcher) Fetch(ctx context.Context, c capability.Capability, subject string, params provider.Params) FetchOutcome {
	log := zap.L().With(
		zap.String("capability", string(c)),
		zap.String("subject", subject),
	)

	key := fetchcache.NewKey(c, subject, params)
	if cached, ok := f.cache.Get(key); ok {
		// A cache hit is not a new fetch outcome: tracker and ledger are
		// untouched, but the original attribution is re-emitted for UI
		// consistency.
		if f.ledger != nil && cached.Available {
			f.ledger.Record(attribution.Record{
				Capability: c,
				Subject:    subject,
				Provider:   cached.Provider,
				Confidence: cached.Confidence,
				Timestamp:  time.Now().UTC(),
				Endpoint:   cached.Endpoint,
				Success:    true,
			})
		}
		cached.FromCache = true
		log.Debug("orchestrator: cache hit", zap.String("provider", cached.Provider))
		return cached
	}

	chain := f.routing.Providers(c)
	attempted := make([]string, 0, len(chain))
	var lastErr error

	for _, name := range chain {
		if err := ctx.Err(); err != nil {
			// Cancellation takes effect at the provider-dispatch boundary.
			lastErr = err
			break
		}

		if f.tracker.IsLimited(name) {
			log.Debug("orchestrator: skipping cooled-down provider", zap.String("provider", name))
			continue
		}

		p := f.registry.Get(name)
		if p == nil || !p.Supports(c) {
			continue
		}

		attempted = append(attempted, name)

		callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
		raw, err := p.Fetch(callCtx, c, subject, params)
		cancel()

		if err == nil && raw != nil {
			outcome := FetchOutcome{
				Capability: c,
				Subject:    subject,
				Available:  true,
				Facts:      raw.Facts,
				Provider:   name,
				Confidence: raw.Confidence,
				Endpoint:   raw.Endpoint,
			}
			f.cache.Put(key, outcome)
			if f.ledger != nil {
				f.ledger.Record(attribution.Record{
					Capability: c,
					Subject:    subject,
					Provider:   name,
					Confidence: raw.Confidence,
					Timestamp:  time.Now().UTC(),
					Endpoint:   raw.Endpoint,
					Success:    true,
				})
			}
			log.Info("orchestrator: fetch succeeded",
				zap.String("provider", name),
				zap.Int("facts", len(raw.Facts)),
			)
			return outcome
		}

		lastErr = err
		switch {
		case provider.IsThrottled(err):
			var te *provider.ThrottledError
			var retryAfter time.Duration
			if errors.As(err, &te) {
				retryAfter = te.RetryAfter
			}
			f.tracker.MarkThrottled(name, retryAfter)
		case provider.IsUnauthorized(err):
			f.tracker.MarkUnauthorized(name)
		default:
			// Transient failure (including per-call timeout): fall through
			// to the next provider without rate-limiting this one.
			log.Warn("orchestrator: provider error, falling back",
				zap.String("provider", name),
				zap.Error(err),
			)
		}
	}

	outcome := FetchOutcome{
		Capability: c,
		Subject:    subject,
		Attempted:  attempted,
		Guidance:   capability.Guidance(c),
	}
	if f.ledger != nil {
		rec := attribution.Record{
			Capability: c,
			Subject:    subject,
			Timestamp:  time.Now().UTC(),
		}
		if lastErr != nil {
			rec.Error = lastErr.Error()
		}
		f.ledger.Record(rec)
	}
	log.Warn("orchestrator: all providers exhausted",
		zap.Strings("attempted", attempted),
		zap.Error(lastErr),
	)
	return outcome
}

// FetchAll dispatches independent capabilities concurrently for one subject.
// No ordering is guaranteed across capabilities; each chain walk stays
// sequential internally.
func (f *Fetcher) FetchAll(ctx context.Context, caps []capability.Capability, subject string, params provider.Params) map[capability.Capability]FetchOutcome {
	results := make(map[capability.Capability]FetchOutcome, len(caps))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range caps {
		c := c
		g.Go(func() error {
			outcome := f.Fetch(gCtx, c, subject, params)
			mu.Lock()
			results[c] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
