package write

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/graph"
	"graphorm/src/infra/metrics"
	"graphorm/src/schema"
	"graphorm/src/validation"
)

// Result describes what a committed nested write created.
type Result struct {
	Root    *entities.Entity
	Created []*entities.Entity
	Linked  []*entities.Entity
	Edges   []entities.Edge
}

// Labels returns the distinct labels of every created or linked node.
func (r Result) Labels() []string {
	seen := map[string]bool{r.Root.Label: true}
	labels := []string{r.Root.Label}
	for _, group := range [][]*entities.Entity{r.Created, r.Linked} {
		for _, e := range group {
			if !seen[e.Label] {
				seen[e.Label] = true
				labels = append(labels, e.Label)
			}
		}
	}
	return labels
}

// CommitObserver is notified once a nested write has committed.
type CommitObserver interface {
	AfterCommit(ctx context.Context, result Result)
}

// Writer creates an entity together with a tree of related entities inside
// one session transaction.
type Writer struct {
	registry  *schema.Registry
	session   graph.Session
	validator validation.Validator
	logger    *slog.Logger
	observers []CommitObserver
}

func NewWriter(
	registry *schema.Registry,
	session graph.Session,
	validator validation.Validator,
	logger *slog.Logger,
	observers ...CommitObserver,
) *Writer {
	if validator == nil {
		validator = validation.RequiredFields{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		registry:  registry,
		session:   session,
		validator: validator,
		logger:    logger,
		observers: observers,
	}
}

// Create persists a single entity.
func (w *Writer) Create(ctx context.Context, kind string, attributes map[string]any) (*entities.Entity, error) {
	return w.CreateWith(ctx, kind, attributes, nil)
}

type element struct {
	attributes map[string]any
	// instance is the caller's entity, if one was supplied.
	instance *entities.Entity
}

func (el element) persisted() bool {
	return el.instance != nil && el.instance.Exists
}

type step struct {
	descriptor schema.Descriptor
	elements   []element
}

// CreateWith creates the root entity, then every related subtree in caller
// order, and links them along each relation's declared direction. Everything
// happens in one transaction: on any failure nothing is persisted and caller
// supplied entities are left untouched. The returned root has every written
// relation bound.
func (w *Writer) CreateWith(ctx context.Context, kind string, attributes map[string]any, tree Tree) (_ *entities.Entity, err error) {
	defer func() {
		metrics.NestedWritesTotal.WithLabelValues(kind, metrics.Status(err)).Inc()
	}()

	rootKind, err := w.registry.Kind(kind)
	if err != nil {
		return nil, err
	}

	steps, err := w.plan(kind, tree)
	if err != nil {
		return nil, err
	}
	attributes = entities.New(kind, attributes).Attributes

	tx, err := w.session.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("Writer.CreateWith - failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			w.logger.Error("rollback failed", "kind", kind, "error", rbErr)
		}
	}()

	if err := w.validator.Validate(rootKind, attributes); err != nil {
		return nil, fmt.Errorf("Writer.CreateWith - root %s: %w", kind, err)
	}
	rootID, err := tx.CreateNode(ctx, kind, attributes)
	if err != nil {
		return nil, fmt.Errorf("Writer.CreateWith - failed to create %s: %w", kind, err)
	}
	root := entities.Hydrate(rootID, kind, attributes)

	result := Result{Root: root}
	bound := make(map[string][]*entities.Entity, len(steps))
	pending := make(map[*entities.Entity]int64)
	linked := make(map[entities.Edge]bool)

	for _, s := range steps {
		d := s.descriptor
		targetKind, err := w.registry.Kind(d.Target)
		if err != nil {
			return nil, err
		}

		for _, el := range s.elements {
			var related *entities.Entity

			if el.persisted() {
				related = el.instance
			} else if _, created := pending[el.instance]; created && el.instance != nil {
				// mesma instância já criada por outro branch: só liga
				related = el.instance
			} else {
				if err := w.validator.Validate(targetKind, el.attributes); err != nil {
					return nil, fmt.Errorf("Writer.CreateWith - %s.%s: %w", kind, d.Name, err)
				}
				id, err := tx.CreateNode(ctx, d.Target, el.attributes)
				if err != nil {
					return nil, fmt.Errorf("Writer.CreateWith - failed to create %s for %s.%s: %w", d.Target, kind, d.Name, err)
				}
				if el.instance != nil {
					// a identidade só é atribuída à instância do chamador após o commit
					related = el.instance
					pending[el.instance] = id
				} else {
					related = entities.Hydrate(id, d.Target, el.attributes)
				}
				result.Created = append(result.Created, related)
			}

			relatedID := related.ID
			if id, ok := pending[related]; ok {
				relatedID = id
			}

			edge := entities.Edge{LeftEntityID: root.ID, RightEntityID: relatedID, RelationshipType: d.EdgeLabel}
			if d.Direction == schema.Incoming {
				edge = edge.Reverse()
			}
			if linked[edge] {
				// a mesma entidade persistida citada duas vezes: uma aresta só
				continue
			}
			linked[edge] = true
			if el.persisted() {
				result.Linked = append(result.Linked, related)
			}
			if err := tx.CreateEdge(ctx, edge.LeftEntityID, edge.RightEntityID, edge.RelationshipType); err != nil {
				return nil, fmt.Errorf("Writer.CreateWith - failed to link %s.%s: %w", kind, d.Name, err)
			}
			result.Edges = append(result.Edges, edge)
			bound[d.Name] = append(bound[d.Name], related)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("Writer.CreateWith - commit of %s failed: %w", kind, attributeCommitError(err))
	}
	committed = true

	for instance, id := range pending {
		instance.ID = id
		instance.Exists = true
	}

	for _, s := range steps {
		if _, done := root.Relation(s.descriptor.Name); done {
			continue
		}
		root.Bind(s.descriptor.Name, s.descriptor.Many(), bound[s.descriptor.Name]...)
	}

	metrics.NestedWriteNodes.Observe(float64(1 + len(result.Created)))
	w.logger.Debug("nested write committed",
		"kind", kind,
		"id", root.ID,
		"created", len(result.Created),
		"linked", len(result.Linked),
		"edges", len(result.Edges))

	for _, o := range w.observers {
		o.AfterCommit(ctx, result)
	}

	return root, nil
}

// plan resolves every branch to its descriptor and flattens the related values.
// It runs before any write so schema misuse never opens a transaction.
func (w *Writer) plan(kind string, tree Tree) ([]step, error) {
	steps := make([]step, 0, len(tree))
	seen := make(map[string]map[*entities.Entity]bool)
	for _, branch := range tree {
		d, err := w.registry.Relation(kind, branch.Relation)
		if err != nil {
			return nil, err
		}

		elements, err := flatten(d, branch.Value)
		if err != nil {
			return nil, err
		}
		if seen[d.Name] == nil {
			seen[d.Name] = make(map[*entities.Entity]bool)
		}
		elements = distinctInstances(elements, seen[d.Name])
		if !d.Many() && len(elements) > 1 {
			return nil, fmt.Errorf("Writer.CreateWith - %s.%s relates a single %s, got %d", kind, d.Name, d.Target, len(elements))
		}

		steps = append(steps, step{descriptor: d, elements: elements})
	}

	// o mesmo nome pode aparecer em mais de um branch; a cardinalidade vale para o total
	totals := make(map[string]int)
	for _, s := range steps {
		totals[s.descriptor.Name] += len(s.elements)
		if !s.descriptor.Many() && totals[s.descriptor.Name] > 1 {
			return nil, fmt.Errorf("Writer.CreateWith - %s.%s relates a single %s", kind, s.descriptor.Name, s.descriptor.Target)
		}
	}
	return steps, nil
}

// distinctInstances drops repeats of the same caller instance, so one
// instance becomes one node and one edge per relation.
func distinctInstances(elements []element, seen map[*entities.Entity]bool) []element {
	kept := elements[:0]
	for _, el := range elements {
		if el.instance != nil {
			if seen[el.instance] {
				continue
			}
			seen[el.instance] = true
		}
		kept = append(kept, el)
	}
	return kept
}

func flatten(d schema.Descriptor, value Related) ([]element, error) {
	switch v := value.(type) {
	case AttributeSet:
		return []element{{attributes: entities.New(d.Target, v).Attributes}}, nil
	case Existing:
		if v.Entity == nil {
			return nil, fmt.Errorf("Writer.CreateWith - %s.%s: nil entity", d.Source, d.Name)
		}
		if v.Entity.Label != d.Target {
			return nil, domain.NewInvalidRelationKindError(v.Entity.Label, d.Source+"."+d.Name)
		}
		return []element{{attributes: entities.New(d.Target, v.Entity.Attributes).Attributes, instance: v.Entity}}, nil
	case List:
		elements := make([]element, 0, len(v))
		for _, item := range v {
			if _, nested := item.(List); nested {
				return nil, fmt.Errorf("Writer.CreateWith - %s.%s: nested lists are not supported", d.Source, d.Name)
			}
			flat, err := flatten(d, item)
			if err != nil {
				return nil, err
			}
			elements = append(elements, flat...)
		}
		return elements, nil
	case nil:
		return nil, fmt.Errorf("Writer.CreateWith - %s.%s: missing related value", d.Source, d.Name)
	}
	return nil, fmt.Errorf("Writer.CreateWith - %s.%s: unsupported related value %T", d.Source, d.Name, value)
}

// attributeCommitError maps a rejected commit onto the error taxonomy.
func attributeCommitError(err error) error {
	if errors.Is(err, domain.ErrWriteConflict) || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrWriteConflict, err)
}
