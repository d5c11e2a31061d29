package graph

import "context"

// Row is one matched root node as returned by a store.
type Row struct {
	ID         int64
	Label      string
	Attributes map[string]any
}

// Session executes traversals against a graph store and opens write transactions.
// Retries are a Session concern; the planners never retry.
type Session interface {
	RunQuery(ctx context.Context, spec TraversalSpec) ([]Row, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one exclusive transactional context. Nothing created through it is
// visible to other callers before Commit; Rollback discards everything.
type Tx interface {
	CreateNode(ctx context.Context, label string, attributes map[string]any) (int64, error)
	CreateEdge(ctx context.Context, fromID, toID int64, edgeLabel string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
