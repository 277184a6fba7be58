// Package config loads provider credentials from the process environment.
//
// The environment is read exactly once, at startup, into an explicit
// Credentials struct that is handed to the rest of the module as plain
// data. Nothing downstream of this package touches os.Getenv.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Credentials holds API keys and endpoint overrides for the completion
// assessment backends. Zero values mean "not configured".
type Credentials struct {
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`

	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	GeminiBaseURL    string `env:"GEMINI_BASE_URL"`
}

// Load reads credentials from the environment. A .env file in the working
// directory is applied first when present; a missing .env is not an error.
func Load() (Credentials, error) {
	_ = godotenv.Load()

	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// APIKey returns the key configured for the named provider, or "".
func (c Credentials) APIKey(provider string) string {
	switch provider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

// BaseURL returns the endpoint override configured for the named provider,
// or "" when the provider default should be used.
func (c Credentials) BaseURL(provider string) string {
	switch provider {
	case "anthropic":
		return c.AnthropicBaseURL
	case "openai":
		return c.OpenAIBaseURL
	case "gemini":
		return c.GeminiBaseURL
	}
	return ""
}
