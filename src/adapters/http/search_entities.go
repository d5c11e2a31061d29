package http

import (
	"net/http"

	"graphorm/src/domain"
)

func (s *Server) SearchEntities(w http.ResponseWriter, r *http.Request) {
	var request domain.SearchRequest
	if err := decodeBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found, err := s.graphService.SearchEntities(r.Context(), r.PathValue("kind"), request)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, MapDomainListToResponse(found))
}
