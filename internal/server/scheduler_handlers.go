package server

import "net/http"

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Start(r.Context()); err != nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"state": string(s.scheduler.Status())})
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Stop(); err != nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"state": string(s.scheduler.Status())})
}

func (s *Server) handleSchedulerPause(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Pause(); err != nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"state": string(s.scheduler.Status())})
}

func (s *Server) handleSchedulerResume(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Resume(); err != nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"state": string(s.scheduler.Status())})
}
