package types

import "fmt"

// Provider identifies an external LLM or image-generation service.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGemini     Provider = "gemini"
	ProviderPerplexity Provider = "perplexity"
	ProviderPinecone   Provider = "pinecone"
)

// AllProviders lists every provider the service knows about, in a stable order.
var AllProviders = []Provider{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGemini,
	ProviderPerplexity,
	ProviderPinecone,
}

// ParseProvider converts a wire string into a Provider.
func ParseProvider(s string) (Provider, error) {
	for _, p := range AllProviders {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

func (p Provider) String() string {
	return string(p)
}
