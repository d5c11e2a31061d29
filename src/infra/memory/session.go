// Package memory is an in-process graph session. Nodes are kept in an
// identity-ordered btree so traversals return roots in creation order.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"

	"graphorm/src/domain"
	"graphorm/src/domain/entities"
	"graphorm/src/graph"
	"graphorm/src/schema"
)

var ErrTxClosed = errors.New("memory: transaction already closed")

type node struct {
	id         int64
	label      string
	attributes map[string]any
}

func byID(a, b *node) bool {
	return a.id < b.id
}

// Session is a graph.Session over an in-memory store. It is safe for
// concurrent use; commits are serialised.
type Session struct {
	mu     sync.RWMutex
	nodes  *btree.BTreeG[*node]
	out    map[int64][]entities.Edge
	in     map[int64][]entities.Edge
	nextID atomic.Int64
	edgeID int64
}

func NewSession() *Session {
	return &Session{
		nodes: btree.NewBTreeG[*node](byID),
		out:   make(map[int64][]entities.Edge),
		in:    make(map[int64][]entities.Edge),
	}
}

func (s *Session) RunQuery(ctx context.Context, spec graph.TraversalSpec) ([]graph.Row, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []graph.Row
	s.nodes.Scan(func(n *node) bool {
		if s.matches(n, spec.Root) {
			rows = append(rows, graph.Row{ID: n.id, Label: n.label, Attributes: maps.Clone(n.attributes)})
		}
		return spec.Limit == 0 || len(rows) < spec.Limit
	})
	return rows, nil
}

func (s *Session) matches(n *node, m graph.Match) bool {
	if n.label != m.Label {
		return false
	}

	for _, c := range m.Conditions {
		var value any
		if c.Attribute == graph.IdentityAttribute {
			value = n.id
		} else {
			value = n.attributes[c.Attribute]
		}
		if !c.Comparator.Compare(value, c.Value) {
			return false
		}
	}

	for _, f := range m.Fragments {
		count := 0
		for id := range s.neighbours(n.id, f.EdgeLabel, f.Direction) {
			if related, ok := s.nodes.Get(&node{id: id}); ok && s.matches(related, f.Target) {
				count++
			}
		}
		if !f.Comparator.CompareInt(count, f.Count) {
			return false
		}
	}
	return true
}

// neighbours returns the distinct node identities adjacent to id over edgeLabel.
func (s *Session) neighbours(id int64, edgeLabel string, direction schema.Direction) map[int64]struct{} {
	set := make(map[int64]struct{})
	if direction == schema.Outgoing || direction == schema.Either {
		for _, e := range s.out[id] {
			if e.RelationshipType == edgeLabel {
				set[e.RightEntityID] = struct{}{}
			}
		}
	}
	if direction == schema.Incoming || direction == schema.Either {
		for _, e := range s.in[id] {
			if e.RelationshipType == edgeLabel {
				set[e.LeftEntityID] = struct{}{}
			}
		}
	}
	return set
}

func (s *Session) Begin(ctx context.Context) (graph.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{session: s, staged: make(map[int64]*node)}, nil
}

// Len returns the number of committed nodes with the given label.
func (s *Session) Len(label string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	s.nodes.Scan(func(n *node) bool {
		if n.label == label {
			count++
		}
		return true
	})
	return count
}

// Edges returns every committed edge in creation order.
func (s *Session) Edges() []entities.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []entities.Edge
	for _, edges := range s.out {
		all = append(all, edges...)
	}
	slices.SortFunc(all, func(a, b entities.Edge) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return all
}

func (s *Session) exists(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.nodes.Get(&node{id: id})
	return ok
}

// linkedLocked reports whether the committed graph already holds e.
// Callers hold s.mu.
func (s *Session) linkedLocked(e entities.Edge) bool {
	return slices.ContainsFunc(s.out[e.LeftEntityID], func(o entities.Edge) bool {
		return o.RightEntityID == e.RightEntityID && o.RelationshipType == e.RelationshipType
	})
}

// Tx stages creates until Commit. Identities are allocated eagerly, so a
// rolled back transaction leaves a gap in the sequence.
type Tx struct {
	session *Session
	staged  map[int64]*node
	order   []int64
	edges   []entities.Edge
	closed  bool
}

func (t *Tx) CreateNode(ctx context.Context, label string, attributes map[string]any) (int64, error) {
	if t.closed {
		return 0, ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !schema.ValidIdentifier(label) {
		return 0, fmt.Errorf("memory: invalid label %q", label)
	}

	id := t.session.nextID.Add(1)
	t.staged[id] = &node{id: id, label: label, attributes: maps.Clone(attributes)}
	t.order = append(t.order, id)
	return id, nil
}

func (t *Tx) CreateEdge(ctx context.Context, fromID, toID int64, edgeLabel string) error {
	if t.closed {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, id := range []int64{fromID, toID} {
		if _, ok := t.staged[id]; !ok && !t.session.exists(id) {
			return fmt.Errorf("memory: edge endpoint %d: %w", id, domain.ErrEntityNotFound)
		}
	}

	// (origem, destino, tipo) é único, como a constraint do Postgres e o MERGE do Neo4j
	edge := entities.Edge{LeftEntityID: fromID, RightEntityID: toID, RelationshipType: edgeLabel}
	if slices.Contains(t.edges, edge) {
		return nil
	}
	t.edges = append(t.edges, edge)
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.session
	s.mu.Lock()
	defer s.mu.Unlock()

	// endpoints existentes podem ter sumido entre o CreateEdge e o commit
	for _, e := range t.edges {
		for _, id := range []int64{e.LeftEntityID, e.RightEntityID} {
			if _, staged := t.staged[id]; staged {
				continue
			}
			if _, ok := s.nodes.Get(&node{id: id}); !ok {
				return fmt.Errorf("memory: edge endpoint %d vanished: %w", id, domain.ErrWriteConflict)
			}
		}
	}

	for _, id := range t.order {
		s.nodes.Set(t.staged[id])
	}
	for _, e := range t.edges {
		if s.linkedLocked(e) {
			continue
		}
		s.edgeID++
		e.ID = s.edgeID
		s.out[e.LeftEntityID] = append(s.out[e.LeftEntityID], e)
		s.in[e.RightEntityID] = append(s.in[e.RightEntityID], e)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.staged = nil
	t.edges = nil
	return nil
}
