package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
)

// EntityDTO é a entidade serializada, com as relações já carregadas.
type EntityDTO struct {
	ID         int64                   `json:"id"`
	Label      string                  `json:"label"`
	Attributes map[string]any          `json:"attributes"`
	Relations  map[string][]*EntityDTO `json:"relations,omitempty"`
}

// MapDomainToResponse converte a entidade e, recursivamente, suas relações carregadas.
func MapDomainToResponse(entity *entities.Entity) *EntityDTO {
	dto := &EntityDTO{
		ID:         entity.ID,
		Label:      entity.Label,
		Attributes: entity.Attributes,
	}
	if dto.Attributes == nil {
		dto.Attributes = map[string]any{}
	}

	loaded := entity.Loaded()
	sort.Strings(loaded)
	for _, name := range loaded {
		binding, _ := entity.Relation(name)
		if dto.Relations == nil {
			dto.Relations = make(map[string][]*EntityDTO, len(loaded))
		}
		related := make([]*EntityDTO, 0, binding.Len())
		for _, e := range binding.All() {
			related = append(related, MapDomainToResponse(e))
		}
		dto.Relations[name] = related
	}
	return dto
}

func MapDomainListToResponse(found []*entities.Entity) []*EntityDTO {
	response := make([]*EntityDTO, 0, len(found))
	for _, e := range found {
		response = append(response, MapDomainToResponse(e))
	}
	return response
}

// decodeBody lê o corpo preservando números como json.Number.
func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError traduz a taxonomia de erros para status HTTP.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrValidationFailed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrUnknownRelation),
		errors.Is(err, domain.ErrInvalidRelationKind),
		errors.Is(err, domain.ErrInvalidComparator):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrWriteConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrStoreUnavailable):
		http.Error(w, domain.ErrStoreUnavailable.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, domain.ErrUnavailableServer.Error(), http.StatusInternalServerError)
	}
}
