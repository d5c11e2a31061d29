package stubs

import (
	"graphorm/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
)

// EdgeStub monta arestas para os seeders. O ID fica zerado: quem persiste
// atribui o seu.
type EdgeStub struct {
	edge entities.Edge
}

func NewEdgeStub() EdgeStub {
	return EdgeStub{edge: entities.Edge{
		LeftEntityID:     int64(gofakeit.IntRange(1, 1<<30)),
		RightEntityID:    int64(gofakeit.IntRange(1, 1<<30)),
		RelationshipType: gofakeit.RandomString([]string{"COMMENT", "PHOTO", "VIDEO", "HAS_ROLE"}),
	}}
}

// Between liga from -> to usando os IDs já atribuídos às entidades.
func (es EdgeStub) Between(from, to *entities.Entity) EdgeStub {
	es.edge.LeftEntityID = from.ID
	es.edge.RightEntityID = to.ID
	return es
}

func (es EdgeStub) WithLeftEntityID(id int64) EdgeStub {
	es.edge.LeftEntityID = id
	return es
}

func (es EdgeStub) WithRightEntityID(id int64) EdgeStub {
	es.edge.RightEntityID = id
	return es
}

func (es EdgeStub) WithRelationshipType(edgeLabel string) EdgeStub {
	es.edge.RelationshipType = edgeLabel
	return es
}

// Reversed inverte a direção, útil para relações belongs_to.
func (es EdgeStub) Reversed() EdgeStub {
	es.edge = es.edge.Reverse()
	return es
}

func (es EdgeStub) Get() entities.Edge {
	return es.edge
}
