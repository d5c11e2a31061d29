package entities

// Binding é o valor resolvido de uma relação, anexado a uma instância específica.
type Binding struct {
	Relation string
	Many     bool
	entities []*Entity
}

func (b *Binding) All() []*Entity {
	return b.entities
}

// First returns the single related entity of a one-cardinality relation,
// or the first element of a many relation. Nil when nothing is related.
func (b *Binding) First() *Entity {
	if len(b.entities) == 0 {
		return nil
	}
	return b.entities[0]
}

func (b *Binding) Len() int {
	return len(b.entities)
}
