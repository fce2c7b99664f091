package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// handleWebhook accepts an inbound notification from a configured *arr
// instance (e.g. "on download" / "on rename") and triggers an incremental
// Wanted Scanner pass — sublarr doesn't parse the *arr payload shape since
// any notification for any reason is a cheap enough trigger to rescan.
func handleWebhook(trigger ScanTrigger, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		if trigger == nil {
			http.Error(w, "scanner not yet wired", http.StatusServiceUnavailable)
			return
		}
		if err := trigger.Run(r.Context(), false); err != nil {
			log.Warn().Err(err).Str("source", source).Msg("webhook-triggered scan failed")
			http.Error(w, "scan failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
