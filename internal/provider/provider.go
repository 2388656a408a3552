// Package provider defines the contract external data sources must satisfy
// and the registry the orchestrator resolves them from. Each provider's raw
// response shape is normalized into the common fact contract here, at the
// boundary, so merge and attribution logic never see provider-specific JSON.
package provider

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/fact"
)

// Params are free-form request parameters (period, limit, search name).
type Params map[string]string

// Canonical renders params as a stable "k=v&k=v" string for cache keys.
func (p Params) Canonical() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p[k])
	}
	return strings.Join(parts, "&")
}

// RawResult is a normalized provider response: the extracted facts plus
// the endpoint descriptor and confidence the adapter assigns at its boundary.
type RawResult struct {
	Facts      fact.Set
	Endpoint   string
	Confidence int // 0..100
}

// Provider is one external data source. Implementations are stateless with
// respect to orchestration; internal auth/caching is opaque to the core.
type Provider interface {
	// Name returns the provider identifier used in routing chains.
	Name() string
	// Supports reports whether the provider can serve a capability.
	Supports(c capability.Capability) bool
	// Fetch retrieves facts for a subject. Throttling and authorization
	// failures must surface as ThrottledError / UnauthorizedError.
	Fetch(ctx context.Context, c capability.Capability, subject string, params Params) (*RawResult, error)
}

// Registry holds the available providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
