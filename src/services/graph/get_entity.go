package graph

import (
	"context"
	"fmt"

	"graphorm/src/domain/entities"
)

func (gs *GraphService) GetEntity(ctx context.Context, kind string, id int64) (*entities.Entity, error) {
	entity, err := gs.planner.Find(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("GraphService.GetEntity - %w", err)
	}
	return entity, nil
}

// GetRelated carrega a entidade e a relação pedida, que fica vinculada à entidade retornada.
func (gs *GraphService) GetRelated(ctx context.Context, kind string, id int64, relation string) (*entities.Entity, error) {
	entity, err := gs.GetEntity(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if _, err := gs.planner.Related(ctx, entity, relation); err != nil {
		return nil, fmt.Errorf("GraphService.GetRelated - %w", err)
	}
	return entity, nil
}
