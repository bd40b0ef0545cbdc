package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Auth happens in the middleware; the origin is not re-checked here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and streams progress events.
// The buffered backlog is flushed first, then the subscription delivers
// live events until either side goes away. Events stay in the queue
// until delivered somewhere, so a client that reconnects after a drop
// picks up what it missed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("Websocket upgrade failed for session %s: %v", sess.ID, err)
		return
	}
	defer conn.Close()

	sess.Touch()

	for _, event := range sess.Queue().Drain() {
		if err := writeEvent(conn, event); err != nil {
			return
		}
	}

	events, cancel := sess.Queue().Subscribe()
	defer cancel()

	// The read loop only notices the peer closing; clients do not send
	// payloads on this socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			sess.Touch()
			if err := writeEvent(conn, event); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(event)
}
