package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// Local monitoring endpoint, no cross-origin restriction.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stream upgrades to a websocket and pushes one state snapshot per tick. The
// engine drops ticks for slow consumers, so a stalled client never backs up
// the loop; a write error closes the session.
func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := h.eng.Subscribe()
	defer h.eng.Unsubscribe(updates)

	// Reader goroutine: surfaces client close and discards anything sent.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Debug("stream opened", "remote", r.RemoteAddr)

	// Send the current state immediately so the client need not wait a tick.
	if state := h.eng.State(); state != nil {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(state); err != nil {
			return
		}
	}

	for {
		select {
		case state := <-updates:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(state); err != nil {
				log.Debug("stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-closed:
			log.Debug("stream closed by client", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}
