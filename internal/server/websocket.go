package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/zeusync/arena/internal/core/observability/log"
	wstransport "github.com/zeusync/arena/internal/core/protocol/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebSocket upgrades /ws?name=<name>. The name is taken as claimed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, ErrMissingName.Error(), http.StatusBadRequest)
		return
	}

	if !s.beginSession() {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sessions.Done()
		s.logger.Warn("Websocket upgrade failed",
			log.String("remote_addr", r.RemoteAddr),
			log.Error(err))
		return
	}

	conn := wstransport.NewConn(ws, name, s.config.Transport(), s.logger)
	s.serveSession(r.Context(), conn)
}
