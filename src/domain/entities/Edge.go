package entities

// Edge liga dois nós persistidos. LeftEntityID é sempre a origem da aresta.
type Edge struct {
	ID               int64  `json:"id,omitempty"`
	LeftEntityID     int64  `json:"left_entity_id"`
	RightEntityID    int64  `json:"right_entity_id"`
	RelationshipType string `json:"relationship_type"`
}

// Reverse devolve a mesma aresta com origem e destino trocados.
func (e Edge) Reverse() Edge {
	e.LeftEntityID, e.RightEntityID = e.RightEntityID, e.LeftEntityID
	return e
}
