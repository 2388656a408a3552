package provider

import (
	"context"
	"fmt"

	"github.com/finsight-labs/finsight/internal/capability"
	"github.com/finsight-labs/finsight/internal/fact"
	"github.com/finsight-labs/finsight/pkg/secedgar"
)

// edgarConfidence is the highest in the chain: primary regulatory filings.
const edgarConfidence = 95

// SECEdgar adapts the EDGAR company facts client to the provider contract.
type SECEdgar struct {
	client secedgar.Client
}

// NewSECEdgar creates the EDGAR provider adapter.
func NewSECEdgar(client secedgar.Client) *SECEdgar {
	return &SECEdgar{client: client}
}

// Name implements Provider.
func (p *SECEdgar) Name() string { return "secedgar" }

// Supports implements Provider. EDGAR holds filings, not quotes or
// pre-computed ratios.
func (p *SECEdgar) Supports(c capability.Capability) bool {
	return c == capability.Profile || c == capability.FinancialStatements
}

// Fetch implements Provider. The subject is a ticker symbol and is resolved
// to a CIK on every call; the response cache in front of the orchestrator
// keeps that from hammering the ticker file.
func (p *SECEdgar) Fetch(ctx context.Context, c capability.Capability, subject string, _ Params) (*RawResult, error) {
	cik, err := p.client.ResolveCIK(ctx, subject)
	if err != nil {
		return nil, classifyHTTPError(p.Name(), err)
	}
	cf, err := p.client.CompanyFacts(ctx, cik)
	if err != nil {
		return nil, classifyHTTPError(p.Name(), err)
	}

	switch c {
	case capability.Profile:
		return p.profile(cik, cf)
	case capability.FinancialStatements:
		return p.statements(cik, cf)
	}
	return nil, fmt.Errorf("secedgar: unsupported capability %s", c)
}

func (p *SECEdgar) profile(cik string, cf *secedgar.CompanyFacts) (*RawResult, error) {
	facts := fact.Set{
		"company_name": fact.New("company_name", cf.EntityName, fact.SourceProvider, p.Name(), edgarConfidence),
		"cik":          fact.New("cik", cik, fact.SourceProvider, p.Name(), edgarConfidence),
	}
	return &RawResult{Facts: facts, Endpoint: "/api/xbrl/companyfacts", Confidence: edgarConfidence}, nil
}

// statementTags maps canonical fact names to the us-gaap tags that can
// supply them, in preference order. Revenue and debt tagging varies across
// filers, so both carry fallbacks.
var statementTags = map[string][]string{
	"total_assets":        {"Assets"},
	"total_equity":        {"StockholdersEquity", "StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest"},
	"total_liabilities":   {"Liabilities"},
	"cash":                {"CashAndCashEquivalentsAtCarryingValue"},
	"current_assets":      {"AssetsCurrent"},
	"current_liabilities": {"LiabilitiesCurrent"},
	"revenue":             {"Revenues", "RevenueFromContractWithCustomerExcludingAssessedTax"},
	"net_income":          {"NetIncomeLoss"},
	"total_debt":          {"DebtLongtermAndShorttermCombinedAmount", "LongTermDebt", "LongTermDebtNoncurrent"},
}

func (p *SECEdgar) statements(_ string, cf *secedgar.CompanyFacts) (*RawResult, error) {
	facts := fact.Set{}
	for name, tags := range statementTags {
		for _, tag := range tags {
			if v, ok := cf.LatestAnnual(tag); ok {
				facts[name] = fact.New(name, v, fact.SourceProvider, p.Name(), edgarConfidence)
				break
			}
		}
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("secedgar: no annual us-gaap facts for %s", cf.EntityName)
	}
	return &RawResult{Facts: facts, Endpoint: "/api/xbrl/companyfacts", Confidence: edgarConfidence}, nil
}
