package graph

import (
	"context"
	"fmt"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/query"
)

// SearchEntities executa a busca de request sobre kind.
func (gs *GraphService) SearchEntities(ctx context.Context, kind string, request domain.SearchRequest) ([]*entities.Entity, error) {
	q, err := applyFilters(gs.planner.Query(kind), request.Where, request.Has)
	if err != nil {
		return nil, fmt.Errorf("GraphService.SearchEntities - %w", err)
	}
	if request.Limit > 0 {
		q = q.Limit(request.Limit)
	}

	found, err := gs.planner.Execute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GraphService.SearchEntities - %w", err)
	}
	return found, nil
}

func applyFilters(q query.Query, where []domain.ConditionDTO, has []domain.RelationFilterDTO) (query.Query, error) {
	for _, condition := range where {
		cmp, err := domain.ParseComparator(condition.Operator)
		if err != nil {
			return q, fmt.Errorf("condition on %s: %w", condition.Attribute, err)
		}
		q = q.Where(condition.Attribute, cmp, condition.Value)
	}

	for _, filter := range has {
		cmp := domain.GreaterOrEqual
		if filter.Operator != "" {
			parsed, err := domain.ParseComparator(filter.Operator)
			if err != nil {
				return q, fmt.Errorf("relation %s: %w", filter.Relation, err)
			}
			cmp = parsed
		}
		count := 1
		if filter.Count != nil {
			count = *filter.Count
		}
		if count < 0 {
			return q, fmt.Errorf("relation %s: negative count %d", filter.Relation, count)
		}

		if len(filter.Where) == 0 && len(filter.Has) == 0 {
			q = q.HasCount(filter.Relation, cmp, count)
			continue
		}

		// erros do sub-documento são levados para fora da closure
		var subErr error
		q = q.WhereHasCount(filter.Relation, func(sub query.Query) query.Query {
			sub, subErr = applyFilters(sub, filter.Where, filter.Has)
			return sub
		}, cmp, count)
		if subErr != nil {
			return q, fmt.Errorf("relation %s: %w", filter.Relation, subErr)
		}
	}

	return q, q.Err()
}
