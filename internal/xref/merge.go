// Package xref reconciles provider-sourced facts with facts extracted from
// user-supplied documents. Documents are primary sources and always win;
// provider confidence is recorded for transparency but never overrides the
// priority rule.
package xref

import (
	"sort"

	"github.com/finsight-labs/finsight/internal/fact"
)

// Discrepancy records a fact name where the provider and document values
// disagree. Both values are retained; the merged set holds the document one.
type Discrepancy struct {
	Name          string    `json:"name"`
	ProviderValue fact.Fact `json:"provider_value"`
	DocumentValue fact.Fact `json:"document_value"`
	Note          string    `json:"note"`
}

// Merge combines provider and document facts under the document-wins rule.
// Facts present only in providerFacts pass through unchanged. A discrepancy
// is produced only when both sides define the name with differing values
// under the field's natural equality. Merge is idempotent:
// merging the result with the same document facts again changes nothing.
func Merge(providerFacts, documentFacts fact.Set) (fact.Set, []Discrepancy) {
	merged := make(fact.Set, len(providerFacts)+len(documentFacts))
	for name, f := range providerFacts {
		merged[name] = f
	}

	var discrepancies []Discrepancy
	for name, docFact := range documentFacts {
		if provFact, ok := providerFacts[name]; ok {
			if bothAvailable(provFact, docFact) && !fact.ValueEquals(provFact, docFact) {
				discrepancies = append(discrepancies, Discrepancy{
					Name:          name,
					ProviderValue: provFact,
					DocumentValue: docFact,
					Note:          "document preferred",
				})
			}
			// An unavailable document fact must not erase a provider value.
			if !docFact.Available && provFact.Available {
				continue
			}
		}
		merged[name] = docFact
	}

	sort.Slice(discrepancies, func(i, j int) bool {
		return discrepancies[i].Name < discrepancies[j].Name
	})
	return merged, discrepancies
}

func bothAvailable(a, b fact.Fact) bool {
	return a.Available && b.Available
}
