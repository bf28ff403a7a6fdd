package fileserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/docserve/docserve/core/infra/logging"
	"github.com/docserve/docserve/core/tempstore"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// broadcastLoop fans store lifecycle events out to every connected stream
// client. A client whose buffer is full is dropped rather than allowed to
// stall the loop.
func (s *Server) broadcastLoop() {
	for evt := range s.eventsCh {
		var slowClients []*websocket.Conn
		s.clientsMu.RLock()
		for conn, ch := range s.clients {
			select {
			case ch <- evt:
			default:
				slowClients = append(slowClients, conn)
			}
		}
		s.clientsMu.RUnlock()

		if len(slowClients) > 0 {
			// Whichever side removes a map entry also closes its channel;
			// closing here unblocks the evicted client's handler.
			s.clientsMu.Lock()
			for _, conn := range slowClients {
				if ch, ok := s.clients[conn]; ok {
					delete(s.clients, conn)
					close(ch)
				}
			}
			s.clientsMu.Unlock()
			for _, conn := range slowClients {
				if err := conn.Close(); err != nil {
					logging.Error(component, "ws client close failed", "error", err)
				}
			}
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	logging.Info(component, "ws connection attempt", "remote", r.RemoteAddr)
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error(component, "ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	logging.Info(component, "ws connected", "remote", r.RemoteAddr)

	clientCh := make(chan tempstore.Event, 100)
	s.clientsMu.Lock()
	s.clients[ws] = clientCh
	s.clientsMu.Unlock()
	defer func() {
		s.clientsMu.Lock()
		if ch, ok := s.clients[ws]; ok {
			delete(s.clients, ws)
			close(ch)
		}
		s.clientsMu.Unlock()
	}()

	for {
		select {
		case evt, ok := <-clientCh:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				logging.Error(component, "event marshal failed", "error", err)
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
