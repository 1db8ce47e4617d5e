package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = eventPongWait * 9 / 10
	eventBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isAllowedOrigin(origin)
	},
}

// eventsHandler streams engine events of one project over a websocket.
// Clients only read; anything they send is discarded.
func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}
		// Subscribe first so no event between the handshake and the loop
		// is lost.
		events, unsubscribe := s.Subscribe(eventBuffer)
		defer unsubscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "project_id", s.ID(), "error", err)
			return
		}
		defer conn.Close()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			conn.SetReadDeadline(time.Now().Add(eventPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(eventPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		log := cfg.Logger.With("project_id", s.ID())
		log.Debug("event stream opened")
		defer log.Debug("event stream closed")

		ping := time.NewTicker(eventPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case ev, ok := <-events:
				if !ok {
					conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "project closed"))
					return
				}
				if err := writeEvent(conn, s.ID(), ev); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, projectID string, ev timeline.Event) error {
	conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
	return conn.WriteJSON(EventMessage{ProjectID: projectID, Event: ev})
}
