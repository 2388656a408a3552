package metrics

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finsight-labs/finsight/internal/fact"
)

// Severity grades an insight.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityRisk    Severity = "risk"
)

// Insight is a synthesized observation over the merged facts and metrics.
// UsedFacts lists the inputs so the UI can trace each statement to sources.
type Insight struct {
	Key       string   `json:"key"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	UsedFacts []string `json:"used_facts,omitempty"`
}

var (
	highLeverage  = decimal.NewFromFloat(2.0)
	lowLiquidity  = decimal.NewFromFloat(1.0)
	thinMargin    = decimal.NewFromFloat(0.05)
	negativeValue = decimal.Zero
)

// Synthesize produces rule-based insights from metrics and facts. It never
// fails: with no usable inputs it reports only data-coverage insights.
func Synthesize(facts fact.Set, computed []Metric) []Insight {
	var insights []Insight
	byKey := make(map[string]Metric, len(computed))
	var unavailable []string
	for _, m := range computed {
		byKey[m.Key] = m
		if !m.Available {
			unavailable = append(unavailable, m.Label)
		}
	}

	if m, ok := byKey["debt_to_equity"]; ok && m.Available {
		switch {
		case m.Value.GreaterThan(highLeverage):
			insights = append(insights, Insight{
				Key:       "high_leverage",
				Severity:  SeverityRisk,
				Message:   fmt.Sprintf("Debt-to-equity of %s indicates heavy leverage relative to shareholder capital.", m.Value),
				UsedFacts: m.Inputs,
			})
		case m.Value.LessThan(negativeValue):
			insights = append(insights, Insight{
				Key:       "negative_equity",
				Severity:  SeverityRisk,
				Message:   "Negative debt-to-equity suggests shareholders' equity is below zero.",
				UsedFacts: m.Inputs,
			})
		}
	}

	if m, ok := byKey["current_ratio"]; ok && m.Available && m.Value.LessThan(lowLiquidity) {
		insights = append(insights, Insight{
			Key:       "low_liquidity",
			Severity:  SeverityWarning,
			Message:   fmt.Sprintf("Current ratio of %s means current liabilities exceed current assets.", m.Value),
			UsedFacts: m.Inputs,
		})
	}

	if m, ok := byKey["net_margin"]; ok && m.Available {
		switch {
		case m.Value.LessThan(negativeValue):
			insights = append(insights, Insight{
				Key:       "unprofitable",
				Severity:  SeverityRisk,
				Message:   "Net margin is negative; the company is operating at a loss.",
				UsedFacts: m.Inputs,
			})
		case m.Value.LessThan(thinMargin):
			insights = append(insights, Insight{
				Key:       "thin_margin",
				Severity:  SeverityInfo,
				Message:   fmt.Sprintf("Net margin of %s leaves little room for cost increases.", m.Value),
				UsedFacts: m.Inputs,
			})
		}
	}

	if len(unavailable) > 0 {
		insights = append(insights, Insight{
			Key:      "partial_coverage",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%d of %d metrics could not be computed from available data.", len(unavailable), len(computed)),
		})
	}

	return insights
}
