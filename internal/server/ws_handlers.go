package server

import "net/http"

// handleWebSocket upgrades the connection and hands it to the hub; the
// hub itself owns the client lifecycle from here.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.hub.Accept(w, r); err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
	}
}
