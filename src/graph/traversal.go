// Package graph defines the backend-neutral traversal description compiled by
// the query planner and the Graph Session contract every store implements.
package graph

import (
	"fmt"
	"slices"

	"graphorm/src/domain"
	"graphorm/src/schema"
)

// IdentityAttribute addresses the store-assigned identity in conditions.
const IdentityAttribute = "id"

// Condition filters a matched node by one attribute.
type Condition struct {
	Attribute  string            `json:"attribute"`
	Comparator domain.Comparator `json:"comparator"`
	Value      any               `json:"value"`
}

// Match describes the nodes of one label satisfying every condition and every fragment.
type Match struct {
	Label      string      `json:"label"`
	Conditions []Condition `json:"conditions,omitempty"`
	Fragments  []Fragment  `json:"fragments,omitempty"`
}

// Fragment constrains the matched node by the number of distinct related
// nodes reachable over one edge label that satisfy Target.
type Fragment struct {
	Relation   string            `json:"relation"`
	EdgeLabel  string            `json:"edge_label"`
	Direction  schema.Direction  `json:"direction"`
	Target     Match             `json:"target"`
	Comparator domain.Comparator `json:"comparator"`
	Count      int               `json:"count"`
}

// TraversalSpec is one complete query: the root match plus an optional limit.
// Stores return roots ordered by identity.
type TraversalSpec struct {
	Root  Match `json:"root"`
	Limit int   `json:"limit,omitempty"`
}

// RequiresZero reports whether a root with no related node satisfies the fragment.
func (f Fragment) RequiresZero() bool {
	return f.Comparator.CompareInt(0, f.Count)
}

// Labels returns every node label the traversal touches, root first.
func (s TraversalSpec) Labels() []string {
	var labels []string
	var walk func(m Match)
	walk = func(m Match) {
		if !slices.Contains(labels, m.Label) {
			labels = append(labels, m.Label)
		}
		for _, f := range m.Fragments {
			walk(f.Target)
		}
	}
	walk(s.Root)
	return labels
}

// Validate checks what renderers interpolate verbatim: labels, edge labels,
// attribute names and comparators.
func (s TraversalSpec) Validate() error {
	if s.Limit < 0 {
		return fmt.Errorf("graph: negative limit %d", s.Limit)
	}
	return s.Root.validate()
}

func (m Match) validate() error {
	if !schema.ValidIdentifier(m.Label) {
		return fmt.Errorf("graph: invalid label %q", m.Label)
	}
	for _, c := range m.Conditions {
		if !schema.ValidIdentifier(c.Attribute) {
			return fmt.Errorf("graph: invalid attribute name %q", c.Attribute)
		}
		if !c.Comparator.Valid() {
			return fmt.Errorf("graph: %w: %q", domain.ErrInvalidComparator, c.Comparator)
		}
	}
	for _, f := range m.Fragments {
		if !schema.ValidIdentifier(f.EdgeLabel) {
			return fmt.Errorf("graph: invalid edge label %q", f.EdgeLabel)
		}
		if !f.Comparator.Valid() {
			return fmt.Errorf("graph: %w: %q", domain.ErrInvalidComparator, f.Comparator)
		}
		if f.Count < 0 {
			return fmt.Errorf("graph: negative count %d for %s", f.Count, f.Relation)
		}
		if err := f.Target.validate(); err != nil {
			return err
		}
	}
	return nil
}
