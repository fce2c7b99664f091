package backends

import (
	"fmt"
	"strings"

	"github.com/Abrechen2/sublarr/internal/translation"
)

// BackendConfig describes one entry of a configured fallback chain (§4.4).
// Mirrors the shape of fields the teacher's ProviderFactory reads off
// *config.Config (internal/core/ai/factory.go), generalized to a plain
// struct so the chain can hold more than one backend at a time instead of
// the teacher's single active provider.
type BackendConfig struct {
	Kind        string  `json:"kind" mapstructure:"kind"` // openrouter, openai, gemini, local
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"` // local only
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

// NewBackend builds one translation.Backend from a BackendConfig, grounded
// on the teacher's ProviderFactory.CreateProvider switch statement.
func NewBackend(cfg BackendConfig) (translation.Backend, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}
	if cfg.Model == "" && kind != "" {
		return nil, fmt.Errorf("translation backend %q: model not configured", kind)
	}

	switch kind {
	case "openrouter":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("translation backend openrouter: API key not configured")
		}
		return NewOpenRouterBackend(cfg.APIKey, cfg.Model, temperature), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("translation backend openai: API key not configured")
		}
		return NewOpenAIBackend(cfg.APIKey, cfg.Model, temperature), nil
	case "gemini", "google", "google-gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("translation backend gemini: API key not configured")
		}
		return NewGeminiBackend(cfg.APIKey, cfg.Model, temperature), nil
	case "local", "ollama", "lmstudio":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("translation backend local: endpoint not configured")
		}
		return NewLocalBackend(cfg.Endpoint, cfg.Model, temperature), nil
	default:
		return nil, fmt.Errorf("unsupported translation backend: %q (supported: openrouter, openai, gemini, local)", cfg.Kind)
	}
}

// NewChain builds an ordered fallback chain, skipping (and logging via the
// returned errs slice) any entry that fails to construct, so one
// misconfigured backend doesn't prevent the rest of the chain from loading.
func NewChain(configs []BackendConfig) ([]translation.Backend, []error) {
	var chain []translation.Backend
	var errs []error
	for _, cfg := range configs {
		backend, err := NewBackend(cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chain = append(chain, backend)
	}
	return chain, errs
}
