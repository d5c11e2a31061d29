package graph

import (
	"context"
	"fmt"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/write"
)

// CreateGraph cria a raiz e as relações descritas no request numa única transação.
// Entidades referenciadas por ID são carregadas antes e apenas vinculadas.
func (gs *GraphService) CreateGraph(ctx context.Context, request domain.CreateGraphRequest) (*entities.Entity, error) {
	if request.Kind == "" {
		return nil, fmt.Errorf("GraphService.CreateGraph - kind is required: %w", domain.ErrValidationFailed)
	}

	var tree write.Tree
	for _, relation := range request.Relations {
		d, err := gs.registry.Relation(request.Kind, relation.Relation)
		if err != nil {
			return nil, fmt.Errorf("GraphService.CreateGraph - %w", err)
		}

		list := make(write.List, 0, len(relation.Entities))
		for _, related := range relation.Entities {
			if related.ID == nil {
				list = append(list, write.AttributeSet(related.Attributes))
				continue
			}

			existing, err := gs.planner.Find(ctx, d.Target, *related.ID)
			if err != nil {
				return nil, fmt.Errorf("GraphService.CreateGraph - %s %d for %s: %w", d.Target, *related.ID, d, err)
			}
			list = append(list, write.Entity(existing))
		}

		if d.Many() {
			tree = tree.With(relation.Relation, list)
		} else {
			for _, item := range list {
				tree = tree.With(relation.Relation, item)
			}
		}
	}

	root, err := gs.writer.CreateWith(ctx, request.Kind, request.Attributes, tree)
	if err != nil {
		return nil, fmt.Errorf("GraphService.CreateGraph - %w", err)
	}
	return root, nil
}
