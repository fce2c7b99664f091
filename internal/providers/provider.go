// Package providers is the Provider Manager (C3): a common interface over
// subtitle search backends, parallel dispatch with per-provider circuit
// breakers, response caching, client-side filtering and scoring.
package providers

import (
	"context"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// Provider is one subtitle search backend. Grounded on the teacher's
// ai.LLMProvider interface shape (internal/core/ai/provider.go) — a small
// method set a factory can construct from config — generalized from LLM
// translation calls to subtitle search/download/health.
type Provider interface {
	Name() string
	Search(ctx context.Context, query domain.VideoQuery) ([]domain.SubtitleResult, error)
	Download(ctx context.Context, result domain.SubtitleResult) ([]byte, error)
	HealthCheck(ctx context.Context) error
}

// Info describes a provider for registry/UI purposes.
type Info struct {
	Name        string
	RequiresKey bool
}
