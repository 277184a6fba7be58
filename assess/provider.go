package assess

import (
	"context"
	"strings"
	"time"
)

// Provider identifies an assessment backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// probeOrder is the fixed priority used when no provider is configured
// explicitly.
var probeOrder = []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGemini}

// ProviderConfig is everything one assessment call needs: which backend,
// how to authenticate, where to send the request, and which model to ask.
// It is derived per call and never persisted.
type ProviderConfig struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string
}

// Caller sends a single short completion request to a backend and returns
// the trimmed, upper-cased response text. Implementations do not retry;
// retry budgets belong to the continuation policy.
type Caller interface {
	Call(ctx context.Context, cfg ProviderConfig, prompt string, timeout time.Duration) (string, error)
}

var defaultModels = map[Provider]string{
	ProviderAnthropic: "claude-haiku-4-5",
	ProviderOpenAI:    "gpt-5.2-mini",
	ProviderGemini:    "gemini-3-flash-preview",
}

var defaultBaseURLs = map[Provider]string{
	ProviderAnthropic: "https://api.anthropic.com",
	ProviderOpenAI:    "https://api.openai.com",
	ProviderGemini:    "https://generativelanguage.googleapis.com",
}

// modelPrefixes associates model-name prefixes with the provider that
// serves them. A model whose prefix does not match the chosen provider is
// replaced by that provider's default, so a name copied from a different
// backend is never sent to the wrong endpoint.
var modelPrefixes = map[Provider][]string{
	ProviderAnthropic: {"claude"},
	ProviderOpenAI:    {"gpt", "o1", "o3", "o4", "codex"},
	ProviderGemini:    {"gemini"},
}

// DefaultModel returns the built-in model for a provider.
func DefaultModel(p Provider) string {
	return defaultModels[p]
}

// DefaultBaseURL returns the built-in endpoint for a provider.
func DefaultBaseURL(p Provider) string {
	return defaultBaseURLs[p]
}

// ModelBelongsTo reports whether the model name is recognizably associated
// with the provider, by prefix convention.
func ModelBelongsTo(p Provider, model string) bool {
	for _, prefix := range modelPrefixes[p] {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
