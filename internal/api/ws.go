package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/eventbus"
)

// progressUpgrader allows any origin: this channel carries no secrets
// (progress fractions/messages only) and is read-only from the client's
// perspective.
var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// handleProgressWS upgrades to a WebSocket and streams every progress tick
// from the event bus to the client until it disconnects. Progress events
// are transient per §4.8: a client that connects late simply starts from
// whatever tick comes next.
func handleProgressWS(bus *eventbus.Bus, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := progressUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		ch := bus.SubscribeProgress(32)
		defer bus.UnsubscribeProgress(ch)

		for evt := range ch {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(evt.Payload); err != nil {
				return
			}
		}
	}
}
