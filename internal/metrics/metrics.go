// Package metrics computes derived financial metrics over a merged fact
// set. Every metric reports its own availability; missing inputs produce an
// unavailable metric with guidance, never an error.
package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/finsight-labs/finsight/internal/fact"
)

// Metric is one derived value. Available=false means an input was missing;
// Guidance names what to supply.
type Metric struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Value     decimal.Decimal `json:"value"`
	Available bool            `json:"available"`
	Inputs    []string        `json:"inputs"`
	Guidance  string          `json:"guidance,omitempty"`
}

type definition struct {
	key      string
	label    string
	inputs   []string
	guidance string
	compute  func(in map[string]decimal.Decimal) (decimal.Decimal, bool)
}

var definitions = []definition{
	{
		key:      "current_ratio",
		label:    "Current Ratio",
		inputs:   []string{"current_assets", "current_liabilities"},
		guidance: "upload a recent balance sheet with current assets and liabilities",
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			return safeDiv(in["current_assets"], in["current_liabilities"])
		},
	},
	{
		key:      "debt_to_equity",
		label:    "Debt to Equity",
		inputs:   []string{"total_debt", "total_equity"},
		guidance: "upload a recent balance sheet with total debt and shareholders' equity",
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			return safeDiv(in["total_debt"], in["total_equity"])
		},
	},
	{
		key:      "debt_to_assets",
		label:    "Debt to Assets",
		inputs:   []string{"total_debt", "total_assets"},
		guidance: "upload a recent balance sheet with total debt and total assets",
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			return safeDiv(in["total_debt"], in["total_assets"])
		},
	},
	{
		key:      "net_margin",
		label:    "Net Margin",
		inputs:   []string{"net_income", "revenue"},
		guidance: "upload a recent income statement with revenue and net income",
		compute: func(in map[string]decimal.Decimal) (decimal.Decimal, bool) {
			return safeDiv(in["net_income"], in["revenue"])
		},
	},
}

// Compute evaluates every metric definition against the fact set. The
// returned slice always has one entry per definition, in a stable order.
func Compute(facts fact.Set) []Metric {
	out := make([]Metric, 0, len(definitions))
	for _, def := range definitions {
		m := Metric{
			Key:    def.key,
			Label:  def.label,
			Inputs: def.inputs,
		}

		inputs := make(map[string]decimal.Decimal, len(def.inputs))
		complete := true
		for _, name := range def.inputs {
			f, ok := facts[name]
			if !ok || !f.Available {
				complete = false
				break
			}
			v, ok := f.Float()
			if !ok {
				complete = false
				break
			}
			inputs[name] = decimal.NewFromFloat(v)
		}

		if complete {
			if v, ok := def.compute(inputs); ok {
				m.Value = v.Round(4)
				m.Available = true
			}
		}
		if !m.Available {
			m.Guidance = def.guidance
		}
		out = append(out, m)
	}
	return out
}

func safeDiv(num, den decimal.Decimal) (decimal.Decimal, bool) {
	if den.IsZero() {
		return decimal.Zero, false
	}
	return num.Div(den), true
}
