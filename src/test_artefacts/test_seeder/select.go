package test_seeder

import (
	"context"

	"graphorm/src/domain/entities"
)

func (ts TestSeeder) CountEntities(ctx context.Context, label string) (int, error) {
	var count int
	err := ts.pool.QueryRow(ctx, `SELECT COUNT(*) FROM entities WHERE type = $1`, label).Scan(&count)
	return count, err
}

// SelectEdges retrieves every edge ordered by id
func (ts TestSeeder) SelectEdges(ctx context.Context) ([]entities.Edge, error) {
	query := `SELECT id, left_entity_id, right_entity_id, relationship_type
			  FROM edges
			  ORDER BY id`

	rows, err := ts.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []entities.Edge
	for rows.Next() {
		var edge entities.Edge
		err := rows.Scan(
			&edge.ID,
			&edge.LeftEntityID,
			&edge.RightEntityID,
			&edge.RelationshipType,
		)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	return edges, rows.Err()
}
