// Package resolve turns facts harvested from documents into a stable
// subject identifier (ticker) usable for provider enrichment.
package resolve

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/finsight-labs/finsight/internal/fact"
)

// SymbolSearcher looks up a ticker symbol by company name. Implemented by
// provider clients that expose symbol search.
type SymbolSearcher interface {
	SearchSymbol(ctx context.Context, name string) (string, error)
}

// Resolver resolves subject identifiers from document facts.
type Resolver struct {
	searcher SymbolSearcher
}

// NewResolver creates a resolver. searcher may be nil, in which case only
// explicit ticker facts resolve.
func NewResolver(searcher SymbolSearcher) *Resolver {
	return &Resolver{searcher: searcher}
}

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// legalSuffixes are stripped from company names before symbol search.
var legalSuffixes = []string{
	"incorporated", "corporation", "company", "holdings",
	"inc", "corp", "ltd", "llc", "plc", "co", "sa", "ag", "nv",
}

// Resolve returns the best identifier candidate for the subject, or ""
// when nothing can be resolved. An empty result is not an error: the
// pipeline degrades to document-only mode.
func (r *Resolver) Resolve(ctx context.Context, docFacts fact.Set) string {
	if f, ok := docFacts["ticker"]; ok && f.Available {
		candidate := strings.ToUpper(strings.TrimSpace(f.String()))
		if tickerPattern.MatchString(candidate) {
			return candidate
		}
	}

	nameFact, ok := docFacts["company_name"]
	if !ok || !nameFact.Available || r.searcher == nil {
		return ""
	}

	name := NormalizeName(nameFact.String())
	if name == "" {
		return ""
	}

	symbol, err := r.searcher.SearchSymbol(ctx, name)
	if err != nil {
		zap.L().Warn("resolve: symbol search failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return ""
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !tickerPattern.MatchString(symbol) {
		return ""
	}
	return symbol
}

// NormalizeName canonicalizes a company name for matching: Unicode NFKD
// decomposition, diacritic stripping, case folding, punctuation removal,
// and legal-suffix trimming.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	for _, r := range strings.ToLower(stripped) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '&':
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 1 {
		last := words[len(words)-1]
		if !isLegalSuffix(last) {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isLegalSuffix(word string) bool {
	for _, s := range legalSuffixes {
		if word == s {
			return true
		}
	}
	return false
}
