package translation

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// newLineBreaker mirrors the provider manager's per-dependency circuit
// breaker (internal/providers/breaker.go), grounded on the same
// tomtom215-cartographus settings: a backend that fails most of its last
// ten-plus calls trips open for a two-minute cool-down before a bounded
// number of half-open probes decide whether to close again.
func newLineBreaker(name string, log zerolog.Logger) *gobreaker.CircuitBreaker[[]Line] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("backend", name).Str("from", from.String()).Str("to", to.String()).Msg("translation backend circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker[[]Line](settings)
}
