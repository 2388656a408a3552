package capability

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Routing maps each capability to its ordered provider fallback chain.
// Priority order is fixed configuration; it is never reordered at runtime
// based on historical success.
type Routing struct {
	Chains map[Capability][]string `yaml:"chains"`
}

// DefaultRouting returns the compiled-in provider priority table.
func DefaultRouting() *Routing {
	return &Routing{
		Chains: map[Capability][]string{
			Profile:             {"fmp", "alphavantage", "secedgar"},
			FinancialStatements: {"fmp", "secedgar", "alphavantage"},
			Executives:          {"fmp"},
			Ratios:              {"fmp", "alphavantage"},
			Quote:               {"fmp", "alphavantage"},
		},
	}
}

// Providers returns the ordered provider chain for a capability.
func (r *Routing) Providers(c Capability) []string {
	return r.Chains[c]
}

// LoadRouting reads a routing table from a YAML file. Capabilities absent
// from the file keep the compiled-in default chain.
func LoadRouting(path string) (*Routing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "capability: read routing %s", path)
	}

	// The YAML has a top-level "routing" key.
	var wrapper struct {
		Routing Routing `yaml:"routing"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "capability: parse routing")
	}

	routing := DefaultRouting()
	for cap, chain := range wrapper.Routing.Chains {
		if !cap.Valid() {
			return nil, eris.Errorf("capability: unknown capability %q in routing", cap)
		}
		if len(chain) == 0 {
			return nil, eris.Errorf("capability: empty provider chain for %q", cap)
		}
		routing.Chains[cap] = chain
	}
	return routing, nil
}
