package query

import (
	"fmt"
	"slices"

	"graphorm/src/domain"
	"graphorm/src/graph"
	"graphorm/src/schema"
)

// SubQuery builds the filters applied inside a nested relation match.
type SubQuery func(Query) Query

// Query is an immutable builder scoped to one entity kind. Every method
// returns a new value; the receiver is never modified. The first builder
// error is kept and reported by Spec / Planner.Execute.
type Query struct {
	registry   *schema.Registry
	kind       string
	conditions []graph.Condition
	fragments  []graph.Fragment
	limit      int
	err        error
}

func newQuery(registry *schema.Registry, kind string) Query {
	q := Query{registry: registry, kind: kind}
	if _, err := registry.Kind(kind); err != nil {
		q.err = err
	}
	return q
}

func (q Query) Kind() string {
	return q.kind
}

func (q Query) Err() error {
	return q.err
}

// Where adds an attribute filter. The attribute "id" filters by identity.
func (q Query) Where(attribute string, cmp domain.Comparator, value any) Query {
	if q.err != nil {
		return q
	}
	if !cmp.Valid() {
		return q.fail(fmt.Errorf("Query.Where - %s.%s: %w: %q", q.kind, attribute, domain.ErrInvalidComparator, cmp))
	}
	if !schema.ValidIdentifier(attribute) {
		return q.fail(fmt.Errorf("Query.Where - invalid attribute name %q", attribute))
	}

	next := q
	next.conditions = append(slices.Clip(q.conditions), graph.Condition{Attribute: attribute, Comparator: cmp, Value: value})
	return next
}

// Has keeps entities with at least one related entity through relation.
func (q Query) Has(relation string) Query {
	return q.HasCount(relation, domain.GreaterOrEqual, 1)
}

// HasCount keeps entities whose number of distinct related entities through
// relation satisfies `count <cmp> n`. Repeated constraints on the same relation conjoin.
func (q Query) HasCount(relation string, cmp domain.Comparator, n int) Query {
	return q.WhereHasCount(relation, nil, cmp, n)
}

// WhereHas keeps entities with at least one related entity matching the sub-query.
func (q Query) WhereHas(relation string, sub SubQuery) Query {
	return q.WhereHasCount(relation, sub, domain.GreaterOrEqual, 1)
}

// WhereHasCount counts only related entities matching the sub-query. The
// sub-query starts empty, scoped to the relation's target kind, and its
// filters stay inside the nested match.
func (q Query) WhereHasCount(relation string, sub SubQuery, cmp domain.Comparator, n int) Query {
	if q.err != nil {
		return q
	}
	if !cmp.Valid() {
		return q.fail(fmt.Errorf("Query.WhereHas - %s.%s: %w: %q", q.kind, relation, domain.ErrInvalidComparator, cmp))
	}
	if n < 0 {
		return q.fail(fmt.Errorf("Query.WhereHas - %s.%s: negative count %d", q.kind, relation, n))
	}

	d, err := q.registry.Relation(q.kind, relation)
	if err != nil {
		return q.fail(err)
	}

	var fragment graph.Fragment
	if sub == nil {
		fragment = CountFragment(d, cmp, n)
	} else {
		nested := sub(newQuery(q.registry, d.Target))
		if nested.err != nil {
			return q.fail(nested.err)
		}
		if nested.kind != d.Target {
			return q.fail(fmt.Errorf("Query.WhereHas - sub-query for %s.%s must stay on %s, got %s", q.kind, relation, d.Target, nested.kind))
		}
		fragment = ConstrainedExistsFragment(d, nested.match())
		fragment.Comparator = cmp
		fragment.Count = n
	}

	next := q
	next.fragments = append(slices.Clip(q.fragments), fragment)
	return next
}

// Limit caps the number of roots returned; zero means no limit.
func (q Query) Limit(n int) Query {
	next := q
	next.limit = n
	return next
}

// Spec compiles the accumulated filters into one traversal.
func (q Query) Spec() (graph.TraversalSpec, error) {
	if q.err != nil {
		return graph.TraversalSpec{}, q.err
	}
	spec := graph.TraversalSpec{Root: q.match(), Limit: q.limit}
	if err := spec.Validate(); err != nil {
		return graph.TraversalSpec{}, err
	}
	return spec, nil
}

func (q Query) match() graph.Match {
	return graph.Match{
		Label:      q.kind,
		Conditions: slices.Clone(q.conditions),
		Fragments:  slices.Clone(q.fragments),
	}
}

func (q Query) fail(err error) Query {
	next := q
	next.err = err
	return next
}
