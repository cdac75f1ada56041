package server

import "net/http"

// handlePositionsSync triggers an out-of-band reconciliation pass; every
// Sync error, whether domain.KindConflict for a sync already in flight or
// any other kind such as a disconnected broker, is returned as 409.
func (s *Server) handlePositionsSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.positionSync.Sync(r.Context(), s.accountID)
	if err != nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
