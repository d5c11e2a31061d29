package http

import (
	"net/http"

	"graphorm/src/domain"
)

func (s *Server) CreateGraph(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateGraphRequest
	if err := decodeBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	request.Kind = r.PathValue("kind")

	root, err := s.graphService.CreateGraph(r.Context(), request)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, MapDomainToResponse(root))
}
