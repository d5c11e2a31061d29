package test_seeder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"graphorm/src/domain/entities"
)

// InsertEntity inserts an entity into the database for testing
func (ts TestSeeder) InsertEntity(ctx context.Context, entity *entities.Entity) {
	properties, err := json.Marshal(entity.Attributes)
	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertEntity failed: %v", err))
	}

	query := `
		INSERT INTO entities (type, reference, properties)
		VALUES ($1, $2, $3::jsonb) RETURNING id`

	err = ts.pool.QueryRow(ctx, query,
		entity.Label,
		uuid.NewString(),
		string(properties),
	).Scan(&entity.ID)

	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertEntity failed: %v", err))
	}
	entity.Exists = true
}

// InsertEdge inserts an edge (relationship) into the database for testing
func (ts TestSeeder) InsertEdge(ctx context.Context, edge *entities.Edge) {
	query := `
		INSERT INTO edges (left_entity_id, right_entity_id, relationship_type)
		VALUES ($1, $2, $3) RETURNING id`

	err := ts.pool.QueryRow(ctx, query,
		edge.LeftEntityID,
		edge.RightEntityID,
		edge.RelationshipType,
	).Scan(&edge.ID)

	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertEdge failed: %v", err))
	}
}
