package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream carries no sensitive data and the UI may be served from
	// another port during development.
	CheckOrigin: func(*http.Request) bool { return true },
}

const streamWriteTimeout = 5 * time.Second

// handleStream upgrades to a websocket and pushes one status payload per
// interval until the run completes or the client goes away. A final payload
// is always sent after completion so the client sees the terminal state.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, ok := s.reg.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reader goroutine: drains control frames and detects client close.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := func() error {
		status, err := s.reg.Status(id)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(buildStatusPayload(id, status))
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	if err := push(); err != nil {
		return
	}
	for {
		select {
		case <-ticker.C:
			if err := push(); err != nil {
				return
			}
		case <-run.Done():
			_ = push()
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run completed"))
			return
		case <-clientGone:
			return
		}
	}
}
