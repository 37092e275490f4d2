package server

import (
	"net/http"
)

// handleStrategyList handles GET /api/strategies.
func (s *Server) handleStrategyList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	defs := s.app.Registry.List()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": defs,
		"count":      len(defs),
	})
}

// handleStrategyGet handles GET /api/strategies/{id}.
func (s *Server) handleStrategyGet(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	def, ok := s.app.Registry.Get(id)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, "unknown strategy: "+id, "unknown_strategy")
		return
	}
	WriteJSON(w, http.StatusOK, def)
}
