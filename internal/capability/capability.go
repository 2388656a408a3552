// Package capability enumerates the categories of requestable data and
// maps each one to its ordered provider fallback chain.
package capability

// Capability is an enumerated unit of requestable work.
type Capability string

const (
	Profile             Capability = "profile"
	FinancialStatements Capability = "financial_statements"
	Executives          Capability = "executives"
	Ratios              Capability = "ratios"
	Quote               Capability = "quote"
)

// All returns every known capability in a stable order.
func All() []Capability {
	return []Capability{Profile, FinancialStatements, Executives, Ratios, Quote}
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case Profile, FinancialStatements, Executives, Ratios, Quote:
		return true
	}
	return false
}

// guidance holds the per-capability action the user can take when every
// provider fails. Unavailable results must always carry one of these.
var guidance = map[Capability]string{
	Profile:             "verify the ticker or company name and try again",
	FinancialStatements: "upload a recent balance sheet or income statement",
	Executives:          "upload a proxy statement or annual report listing officers",
	Ratios:              "upload recent financial statements so ratios can be computed locally",
	Quote:               "verify the ticker symbol; quotes require a listed security",
}

// Guidance returns the actionable guidance string for a capability.
func Guidance(c Capability) string {
	if g, ok := guidance[c]; ok {
		return g
	}
	return "verify the entity identifier and try again"
}
