package http

import (
	"net/http"
	"strconv"
)

func (s *Server) GetEntity(w http.ResponseWriter, r *http.Request) {
	entityID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid Entity ID format", http.StatusBadRequest)
		return
	}

	entity, err := s.graphService.GetEntity(r.Context(), r.PathValue("kind"), entityID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, MapDomainToResponse(entity))
}

func (s *Server) GetRelated(w http.ResponseWriter, r *http.Request) {
	entityID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid Entity ID format", http.StatusBadRequest)
		return
	}

	entity, err := s.graphService.GetRelated(r.Context(), r.PathValue("kind"), entityID, r.PathValue("relation"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, MapDomainToResponse(entity))
}
