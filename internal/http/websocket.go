package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voice-command-dispatcher/internal/models"
	"voice-command-dispatcher/internal/observability/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// newUpgrader accepts same-origin pages, clients that send no Origin, and
// the configured origins. The socket accepts transcript frames that trigger
// actions, so other pages must not be able to open it.
func newUpgrader(allowed []string) websocket.Upgrader {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || set["*"] || set[origin] {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
}

// statusFeed streams hub messages to the client. Clients using the push
// recognizer may send {"transcript","final"} frames on the same socket.
func (h *handler) statusFeed(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithComponent("websocket")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	msgs, unsubscribe := h.app.Hub.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxBodyBytes)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			var req models.TranscriptRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if h.app.Push == nil {
				continue
			}
			if err := h.app.Validator.Validate(req); err != nil {
				logger.Debug().Err(err).Msg("Ignoring invalid transcript frame")
				continue
			}
			if err := h.app.Push.Push(req.Transcript, req.Final); err != nil {
				logger.Debug().Err(err).Msg("Transcript frame not accepted")
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("Write error")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
