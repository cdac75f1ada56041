package server

import "net/http"

func (s *Server) handleBrokerConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.broker.Connect(r.Context()); err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"connected": s.broker.IsConnected()})
}

func (s *Server) handleBrokerDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.broker.Disconnect(r.Context()); err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"connected": s.broker.IsConnected()})
}

func (s *Server) handleBrokerStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"connected": s.broker.IsConnected()})
}
