package assess

import (
	"github.com/driftlock/drover/checkpoint"
	"github.com/driftlock/drover/config"
)

// Resolve determines which backend an assessment call should use, and with
// which credentials and model.
//
// When the checkpoint names a provider explicitly, only that provider's
// credential is consulted; a missing credential resolves to nil rather
// than silently substituting a different backend. Without an explicit
// choice, providers are probed in fixed priority order and the first one
// with a credential wins.
//
// The checkpoint's model is honored only if its name prefix matches the
// chosen provider; otherwise the provider's own default is substituted.
//
// A nil result means no assessment capability is available. That is an
// expected outcome, not an error.
func Resolve(cfg checkpoint.Config, creds config.Credentials) *ProviderConfig {
	var chosen Provider
	if cfg.Provider != "" {
		p := Provider(cfg.Provider)
		if creds.APIKey(string(p)) == "" {
			return nil
		}
		chosen = p
	} else {
		for _, p := range probeOrder {
			if creds.APIKey(string(p)) != "" {
				chosen = p
				break
			}
		}
		if chosen == "" {
			return nil
		}
	}

	model := cfg.Model
	if model == "" || !ModelBelongsTo(chosen, model) {
		model = DefaultModel(chosen)
	}

	baseURL := creds.BaseURL(string(chosen))
	if baseURL == "" {
		baseURL = DefaultBaseURL(chosen)
	}

	return &ProviderConfig{
		Provider: chosen,
		APIKey:   creds.APIKey(string(chosen)),
		BaseURL:  baseURL,
		Model:    model,
	}
}
