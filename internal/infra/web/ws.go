// File: internal/infra/web/ws.go
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"contentforge/internal/infra/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients connect from the app's own frontends; origin policy is
	// enforced at the edge.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSubscribe upgrades to a websocket and streams the topic's progress
// events until the client disconnects. No history is replayed.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "topic")
	if topicID == "" {
		s.writeError(w, http.StatusBadRequest, "missing topic")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := s.hub.Subscribe(topicID)
	log := logging.With(logging.WithTopicID(r.Context(), topicID), s.log)

	// Read pump: we expect nothing from the client, but reading is what
	// surfaces close frames and keeps pong handling alive.
	go func() {
		defer s.hub.Unsubscribe(sub)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("subscriber write failed")
				s.hub.Unsubscribe(sub)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.Unsubscribe(sub)
				return
			}
		}
	}
}
