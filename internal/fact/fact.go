// Package fact defines the unit of data exchanged between providers,
// document extraction, and the analysis pipeline.
package fact

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SourceKind identifies where a fact came from.
type SourceKind string

const (
	// SourceProvider marks a fact obtained from an external data provider.
	SourceProvider SourceKind = "provider"
	// SourceDocument marks a fact extracted from a user-supplied document.
	SourceDocument SourceKind = "document"
)

// Fact is a named value with provenance and confidence. A Fact with
// Available=false carries no value; Guidance explains how the user can
// supply the missing data.
type Fact struct {
	Name       string     `json:"name"`
	Value      any        `json:"value,omitempty"`
	Available  bool       `json:"available"`
	SourceKind SourceKind `json:"source_kind,omitempty"`
	SourceName string     `json:"source_name,omitempty"`
	Confidence int        `json:"confidence"` // 0..100
	Unit       string     `json:"unit,omitempty"`
	AsOf       *time.Time `json:"as_of,omitempty"`
	Guidance   string     `json:"guidance,omitempty"`
}

// New creates an available fact.
func New(name string, value any, kind SourceKind, sourceName string, confidence int) Fact {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return Fact{
		Name:       name,
		Value:      value,
		Available:  true,
		SourceKind: kind,
		SourceName: sourceName,
		Confidence: confidence,
	}
}

// Unavailable creates the explicit unavailable variant for a fact name.
// Downstream consumers branch on Available, never on placeholder strings.
func Unavailable(name, guidance string) Fact {
	return Fact{
		Name:     name,
		Guidance: guidance,
	}
}

// Float returns the fact value as a float64 when it is numeric (or a
// numeric string). ok is false for unavailable or non-numeric facts.
func (f Fact) Float() (val float64, ok bool) {
	if !f.Available {
		return 0, false
	}
	switch v := f.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// String returns the fact value rendered as a string, or "" when unavailable.
func (f Fact) String() string {
	if !f.Available {
		return ""
	}
	switch v := f.Value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ValueEquals reports whether two facts hold the same value under the
// field's natural equality: numeric values compare with a small relative
// tolerance, everything else compares as trimmed case-insensitive strings.
func ValueEquals(a, b Fact) bool {
	if a.Available != b.Available {
		return false
	}
	if !a.Available {
		return true
	}
	af, aok := a.Float()
	bf, bok := b.Float()
	if aok && bok {
		diff := math.Abs(af - bf)
		scale := math.Max(math.Abs(af), math.Abs(bf))
		if scale == 0 {
			return diff == 0
		}
		return diff/scale < 1e-9
	}
	return strings.EqualFold(strings.TrimSpace(a.String()), strings.TrimSpace(b.String()))
}

// Set is a collection of facts keyed by name.
type Set map[string]Fact

// Clone returns a shallow copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the fact names in sorted order for deterministic output.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Merge copies all facts from other into s, overwriting on collision.
func (s Set) Merge(other Set) {
	for k, v := range other {
		s[k] = v
	}
}

// AvailableCount returns how many facts in the set carry a value.
func (s Set) AvailableCount() int {
	var n int
	for _, f := range s {
		if f.Available {
			n++
		}
	}
	return n
}
