package graph

import (
	"graphorm/src/query"
	"graphorm/src/schema"
	"graphorm/src/write"
)

// GraphService traduz documentos JSON (escritas aninhadas e buscas) para o
// planner de consultas e o writer.
type GraphService struct {
	registry *schema.Registry
	planner  *query.Planner
	writer   *write.Writer
}

func NewGraphService(
	registry *schema.Registry,
	planner *query.Planner,
	writer *write.Writer,
) *GraphService {
	return &GraphService{
		registry: registry,
		planner:  planner,
		writer:   writer,
	}
}
