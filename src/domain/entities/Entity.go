package entities

import (
	"maps"
)

// É o "nó" do nosso grafo.
type Entity struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	// Atributos escalares do nó. Nunca contém a identidade ("id").
	Attributes map[string]any `json:"attributes"`
	// Exists indica que a entidade já foi persistida no store.
	Exists bool `json:"-"`

	bindings map[string]*Binding
}

// New builds an in-memory (not yet persisted) entity of the given label.
func New(label string, attributes map[string]any) *Entity {
	attrs := make(map[string]any, len(attributes))
	for k, v := range attributes {
		if k == "id" {
			continue
		}
		attrs[k] = v
	}
	return &Entity{Label: label, Attributes: attrs}
}

// Hydrate builds a persisted entity from a row returned by the store.
func Hydrate(id int64, label string, attributes map[string]any) *Entity {
	e := New(label, attributes)
	e.ID = id
	e.Exists = true
	return e
}

func (e *Entity) Attr(name string) any {
	if name == "id" {
		return e.ID
	}
	return e.Attributes[name]
}

// ToMap returns the attributes plus the identity under "id" once persisted.
func (e *Entity) ToMap() map[string]any {
	out := maps.Clone(e.Attributes)
	if out == nil {
		out = map[string]any{}
	}
	if e.Exists {
		out["id"] = e.ID
	}
	return out
}

// Bind attaches related entities to this instance under the relation name,
// replacing any previous binding.
func (e *Entity) Bind(relation string, many bool, related ...*Entity) *Binding {
	if e.bindings == nil {
		e.bindings = make(map[string]*Binding)
	}
	b := &Binding{Relation: relation, Many: many, entities: append([]*Entity(nil), related...)}
	e.bindings[relation] = b
	return b
}

// Relation returns the loaded binding for the relation, if any.
func (e *Entity) Relation(name string) (*Binding, bool) {
	b, ok := e.bindings[name]
	return b, ok
}

// Loaded lists the relation names with a binding on this instance.
func (e *Entity) Loaded() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	return names
}

// Invalidate drops every binding; the next access must re-fetch.
func (e *Entity) Invalidate() {
	e.bindings = nil
}
