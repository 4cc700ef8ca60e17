package websocket

import (
	"net/http"
	"strings"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades a dashboard connection and streams hub events to
// it. originPatterns lists extra hosts allowed to connect cross-origin.
// The optional ?entities=schedule,notification query narrows the feed.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entities []string
		if q := r.URL.Query().Get("entities"); q != "" {
			entities = strings.Split(q, ",")
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.CloseNow()

		log := hub.logger.With("remote", r.RemoteAddr)
		log.Debug("dashboard connected", "entities", entities)
		NewClient(hub, conn, entities...).Run(r.Context())
		log.Debug("dashboard disconnected")
	}
}
