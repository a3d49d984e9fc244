package routing

import (
	"fmt"

	"github.com/futurespeakai/sage-router/internal/types"
)

// Decision is the provider/model/reasoning triple chosen for one request.
// Constructed fresh per request and never persisted beyond it.
type Decision struct {
	Provider     types.Provider `json:"provider"`
	Model        string         `json:"model"`
	UseReasoning bool           `json:"useReasoning"`
	Rationale    string         `json:"rationale"`
	Category     Category       `json:"category,omitempty"`
}

// categoryTarget is the primary provider and reasoning flag for a category.
type categoryTarget struct {
	provider     types.Provider
	useReasoning bool
}

var categoryTargets = map[Category]categoryTarget{
	CategoryResearch:  {types.ProviderAnthropic, true},
	CategoryCreative:  {types.ProviderOpenAI, false},
	CategoryTechnical: {types.ProviderGemini, false},
	CategoryStrategic: {types.ProviderAnthropic, true},
}

// fallbackChains orders the alternates tried when a category's primary
// provider is unhealthy or fails. Each chain starts with the primary.
var fallbackChains = map[Category][]types.Provider{
	CategoryResearch:  {types.ProviderAnthropic, types.ProviderOpenAI, types.ProviderGemini},
	CategoryStrategic: {types.ProviderAnthropic, types.ProviderOpenAI, types.ProviderGemini},
	CategoryCreative:  {types.ProviderOpenAI, types.ProviderAnthropic, types.ProviderGemini},
	CategoryTechnical: {types.ProviderGemini, types.ProviderOpenAI, types.ProviderAnthropic},
}

// FallbackChain returns the ordered chain for a category. Unknown categories
// get the strategic chain.
func FallbackChain(c Category) []types.Provider {
	chain, ok := fallbackChains[c]
	if !ok {
		chain = fallbackChains[CategoryStrategic]
	}
	out := make([]types.Provider, len(chain))
	copy(out, chain)
	return out
}

// ValidateChains is a startup invariant check: every category must resolve
// to a non-empty chain that begins with its primary provider.
func ValidateChains() error {
	for cat, target := range categoryTargets {
		chain, ok := fallbackChains[cat]
		if !ok || len(chain) == 0 {
			return fmt.Errorf("category %s has no fallback chain", cat)
		}
		if chain[0] != target.provider {
			return fmt.Errorf("category %s chain starts with %s, want primary %s", cat, chain[0], target.provider)
		}
	}
	return nil
}
