package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"graphorm/src/graph"
)

// Session runs traversals on the read pool and nested writes on the write pool.
type Session struct {
	readPool  *pgxpool.Pool
	writePool *pgxpool.Pool
}

func NewSession(client *ReadWriteClient) *Session {
	return &Session{readPool: client.GetReadPool(), writePool: client.GetWritePool()}
}

func (s *Session) RunQuery(ctx context.Context, spec graph.TraversalSpec) ([]graph.Row, error) {
	query, args, err := RenderQuery(spec)
	if err != nil {
		return nil, fmt.Errorf("PostgresSession.RunQuery - failed to render traversal: %w", err)
	}

	rows, err := s.readPool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("PostgresSession.RunQuery - traversal query failed: %w", attribute(err))
	}
	defer rows.Close()

	var result []graph.Row
	for rows.Next() {
		var row graph.Row
		var propertiesRaw json.RawMessage

		if err := rows.Scan(&row.ID, &row.Label, &propertiesRaw); err != nil {
			return nil, fmt.Errorf("PostgresSession.RunQuery - failed to scan entity: %w", err)
		}

		if len(propertiesRaw) > 0 && string(propertiesRaw) != "null" {
			if err := json.Unmarshal(propertiesRaw, &row.Attributes); err != nil {
				log.Printf("PostgresSession.RunQuery - [WARN] could not unmarshal properties for entity %d: %v", row.ID, err)
			}
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PostgresSession.RunQuery - error iterating rows: %w", attribute(err))
	}

	return result, nil
}

func (s *Session) Begin(ctx context.Context) (graph.Tx, error) {
	tx, err := s.writePool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("PostgresSession.Begin - failed to begin transaction: %w", attribute(err))
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps one pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) CreateNode(ctx context.Context, label string, attributes map[string]any) (int64, error) {
	if attributes == nil {
		attributes = map[string]any{}
	}
	properties, err := json.Marshal(attributes)
	if err != nil {
		return 0, fmt.Errorf("PostgresTx.CreateNode - failed to encode %s properties: %w", label, err)
	}

	var id int64
	err = t.tx.QueryRow(ctx,
		`INSERT INTO entities (type, reference, properties) VALUES ($1, $2, $3::jsonb) RETURNING id`,
		label, uuid.NewString(), string(properties),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("PostgresTx.CreateNode - failed to insert %s: %w", label, attribute(err))
	}
	return id, nil
}

func (t *Tx) CreateEdge(ctx context.Context, fromID, toID int64, edgeLabel string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO edges (left_entity_id, right_entity_id, relationship_type) VALUES ($1, $2, $3)
		 ON CONFLICT (left_entity_id, right_entity_id, relationship_type) DO NOTHING`,
		fromID, toID, edgeLabel,
	)
	if err != nil {
		return fmt.Errorf("PostgresTx.CreateEdge - failed to insert %s edge %d->%d: %w", edgeLabel, fromID, toID, attribute(err))
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return attribute(err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return err
	}
	return nil
}
