package providers

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// newBreaker builds a per-provider circuit breaker. Settings are grounded
// on cartographus's JellyfinCircuitBreakerClient (internal/sync/
// jellyfin_circuit_breaker.go): open once failures dominate a window with
// enough samples to be meaningful, then probe cautiously in half-open.
func newBreaker(name string, log zerolog.Logger) *gobreaker.CircuitBreaker[[]domain.SubtitleResult] {
	return gobreaker.NewCircuitBreaker[[]domain.SubtitleResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			log.Warn().Str("provider", breakerName).Str("from", from.String()).Str("to", to.String()).
				Msg("provider circuit breaker state change")
		},
	})
}
