package write

import "graphorm/src/domain/entities"

// Related is the value attached to one relation in a nested write:
// an AttributeSet, an Existing entity, or a List of either.
type Related interface {
	related()
}

// AttributeSet creates a new entity of the relation's target kind.
type AttributeSet map[string]any

// Existing references an entity instance. Persisted instances are linked
// as-is; unpersisted ones are created with their own attributes.
type Existing struct {
	Entity *entities.Entity
}

// List attaches several elements to a many relation, in order.
type List []Related

func (AttributeSet) related() {}
func (Existing) related()     {}
func (List) related()         {}

func Entity(e *entities.Entity) Existing {
	return Existing{Entity: e}
}

// Attributes builds a List of attribute sets.
func Attributes(sets ...map[string]any) List {
	list := make(List, 0, len(sets))
	for _, s := range sets {
		list = append(list, AttributeSet(s))
	}
	return list
}

// Branch pairs a relation name with its related value.
type Branch struct {
	Relation string
	Value    Related
}

// Tree is processed in the order the branches were supplied.
type Tree []Branch

func With(relation string, value Related) Tree {
	return Tree{{Relation: relation, Value: value}}
}

func (t Tree) With(relation string, value Related) Tree {
	return append(t[:len(t):len(t)], Branch{Relation: relation, Value: value})
}
