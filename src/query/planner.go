package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/graph"
	"graphorm/src/infra/metrics"
	"graphorm/src/schema"
)

// Planner composes relation fragments with base filters into one traversal,
// runs it on the session and hydrates the matched roots.
type Planner struct {
	registry *schema.Registry
	session  graph.Session
	logger   *slog.Logger
}

func NewPlanner(registry *schema.Registry, session graph.Session, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{registry: registry, session: session, logger: logger}
}

// Query starts a query scoped to one entity kind.
func (p *Planner) Query(kind string) Query {
	return newQuery(p.registry, kind)
}

// Execute runs the query. Roots reachable through several qualifying paths
// appear once; the store's order is kept. Session errors are returned as-is
// (wrapped for context) and never retried.
func (p *Planner) Execute(ctx context.Context, q Query) ([]*entities.Entity, error) {
	spec, err := q.Spec()
	if err != nil {
		return nil, err
	}
	return p.run(ctx, spec)
}

// First returns the first matching entity or domain.ErrEntityNotFound.
func (p *Planner) First(ctx context.Context, q Query) (*entities.Entity, error) {
	found, err := p.Execute(ctx, q.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("Planner.First - no %s matched: %w", q.kind, domain.ErrEntityNotFound)
	}
	return found[0], nil
}

// Find fetches a fresh instance by identity. The returned entity carries no bindings.
func (p *Planner) Find(ctx context.Context, kind string, id int64) (*entities.Entity, error) {
	return p.First(ctx, p.Query(kind).Where(graph.IdentityAttribute, domain.Equal, id))
}

// Related returns the binding for relation, loading it on first access.
func (p *Planner) Related(ctx context.Context, e *entities.Entity, relation string) (*entities.Binding, error) {
	if b, ok := e.Relation(relation); ok {
		return b, nil
	}
	return p.Load(ctx, e, relation)
}

// Load fetches the entities related to e through relation and binds them to e,
// replacing a previous binding.
func (p *Planner) Load(ctx context.Context, e *entities.Entity, relation string) (*entities.Binding, error) {
	d, err := p.registry.Relation(e.Label, relation)
	if err != nil {
		return nil, err
	}
	if !e.Exists {
		return e.Bind(relation, d.Many()), nil
	}

	spec := graph.TraversalSpec{
		Root: graph.Match{
			Label:     d.Target,
			Fragments: []graph.Fragment{inverseFragment(d, e.ID)},
		},
	}
	if !d.Many() {
		spec.Limit = 1
	}

	related, err := p.run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("Planner.Load - failed to load %s.%s for %d: %w", e.Label, relation, e.ID, err)
	}
	return e.Bind(relation, d.Many(), related...), nil
}

func (p *Planner) run(ctx context.Context, spec graph.TraversalSpec) ([]*entities.Entity, error) {
	kind := spec.Root.Label
	start := time.Now()

	rows, err := p.session.RunQuery(ctx, spec)
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues(kind, metrics.Status(err)).Inc()
	if err != nil {
		p.logger.Error("traversal failed", "kind", kind, "error", err)
		return nil, fmt.Errorf("Planner.Execute - traversal on %s failed: %w", kind, err)
	}

	seen := make(map[int64]struct{}, len(rows))
	result := make([]*entities.Entity, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}

		label := row.Label
		if label == "" {
			label = kind
		}
		result = append(result, entities.Hydrate(row.ID, label, row.Attributes))
	}

	if dups := len(rows) - len(result); dups > 0 {
		metrics.DuplicateRootsTotal.WithLabelValues(kind).Add(float64(dups))
		p.logger.Debug("deduplicated roots", "kind", kind, "duplicates", dups)
	}

	return result, nil
}
