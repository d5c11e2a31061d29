// Package neo4j runs traversals and nested writes against a Neo4j server
// through the official Bolt driver.
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"graphorm/src/domain"
	"graphorm/src/graph"
	"graphorm/src/schema"
)

func NewDriver(ctx context.Context, uri, username, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect neo4j: %w", attribute(err))
	}
	return driver, nil
}

type Session struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewSession uses the server default database when database is empty.
func NewSession(driver neo4j.DriverWithContext, database string) *Session {
	return &Session{driver: driver, database: database}
}

func (s *Session) RunQuery(ctx context.Context, spec graph.TraversalSpec) ([]graph.Row, error) {
	cypher, params, err := RenderQuery(spec)
	if err != nil {
		return nil, fmt.Errorf("Neo4jSession.RunQuery - failed to render traversal: %w", err)
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("Neo4jSession.RunQuery - traversal query failed: %w", attribute(err))
	}

	var rows []graph.Row
	for result.Next(ctx) {
		record := result.Record()

		rawID, _ := record.Get("id")
		id, ok := rawID.(int64)
		if !ok {
			return nil, fmt.Errorf("Neo4jSession.RunQuery - unexpected id %v (%T)", rawID, rawID)
		}

		row := graph.Row{ID: id, Label: spec.Root.Label}
		if rawProps, ok := record.Get("properties"); ok {
			if props, ok := rawProps.(map[string]any); ok {
				row.Attributes = props
			} else {
				log.Printf("Neo4jSession.RunQuery - [WARN] unexpected properties for node %d: %T", id, rawProps)
			}
		}
		rows = append(rows, row)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("Neo4jSession.RunQuery - error iterating records: %w", attribute(err))
	}
	return rows, nil
}

func (s *Session) Begin(ctx context.Context) (graph.Tx, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})

	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		_ = session.Close(ctx)
		return nil, fmt.Errorf("Neo4jSession.Begin - failed to begin transaction: %w", attribute(err))
	}
	return &Tx{session: session, tx: tx}, nil
}

// Tx owns its driver session and closes it on Commit or Rollback.
type Tx struct {
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
	closed  bool
}

func (t *Tx) CreateNode(ctx context.Context, label string, attributes map[string]any) (int64, error) {
	if !schema.ValidIdentifier(label) {
		return 0, fmt.Errorf("Neo4jTx.CreateNode - invalid label %q", label)
	}

	props := make(map[string]any, len(attributes))
	for k, v := range attributes {
		props[k] = propertyValue(v)
	}

	result, err := t.tx.Run(ctx, fmt.Sprintf("CREATE (n:`%s`) SET n = $attributes RETURN id(n) AS id", label),
		map[string]any{"attributes": props})
	if err != nil {
		return 0, fmt.Errorf("Neo4jTx.CreateNode - failed to create %s: %w", label, attribute(err))
	}

	record, err := result.Single(ctx)
	if err != nil {
		return 0, fmt.Errorf("Neo4jTx.CreateNode - failed to read %s id: %w", label, attribute(err))
	}
	rawID, _ := record.Get("id")
	id, ok := rawID.(int64)
	if !ok {
		return 0, fmt.Errorf("Neo4jTx.CreateNode - unexpected id %v (%T)", rawID, rawID)
	}
	return id, nil
}

// CreateEdge uses MERGE so repeating an edge inside one write is harmless.
func (t *Tx) CreateEdge(ctx context.Context, fromID, toID int64, edgeLabel string) error {
	if !schema.ValidIdentifier(edgeLabel) {
		return fmt.Errorf("Neo4jTx.CreateEdge - invalid edge label %q", edgeLabel)
	}

	cypher := fmt.Sprintf("MATCH (a), (b) WHERE id(a) = $from AND id(b) = $to MERGE (a)-[:`%s`]->(b) RETURN count(*) AS linked", edgeLabel)
	result, err := t.tx.Run(ctx, cypher, map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return fmt.Errorf("Neo4jTx.CreateEdge - failed to link %d->%d: %w", fromID, toID, attribute(err))
	}

	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("Neo4jTx.CreateEdge - failed to read link result: %w", attribute(err))
	}
	if linked, _ := record.Get("linked"); linked == int64(0) {
		return fmt.Errorf("Neo4jTx.CreateEdge - %w: %d or %d", domain.ErrEntityNotFound, fromID, toID)
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	defer t.close(ctx)
	if err := t.tx.Commit(ctx); err != nil {
		return attribute(err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	defer t.close(ctx)
	if err := t.tx.Rollback(ctx); err != nil {
		return attribute(err)
	}
	return nil
}

func (t *Tx) close(ctx context.Context) {
	if t.closed {
		return
	}
	t.closed = true
	if err := t.session.Close(ctx); err != nil {
		log.Printf("Neo4jTx - [WARN] failed to close session: %v", err)
	}
}

// attribute maps driver errors onto the error taxonomy when the cause is known.
func attribute(err error) error {
	switch {
	case err == nil:
		return nil
	case neo4j.IsConnectivityError(err):
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	case neo4j.IsRetryable(err):
		return fmt.Errorf("%w: %w", domain.ErrWriteConflict, err)
	}
	return err
}

// propertyValue converts decoded JSON numbers into types Bolt can carry.
func propertyValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
