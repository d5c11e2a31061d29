package stubs

import (
	"graphorm/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
)

type EntityStub struct {
	label      string
	attributes map[string]any
	id         int64
	persisted  bool
}

func NewEntityStub() EntityStub {
	return EntityStub{
		label: "User",
		attributes: map[string]any{
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
		},
	}
}

func (es EntityStub) WithLabel(label string) EntityStub {
	es.label = label
	return es
}

// WithAttributes substitui todos os atributos.
func (es EntityStub) WithAttributes(attributes map[string]any) EntityStub {
	es.attributes = attributes
	return es
}

func (es EntityStub) WithAttribute(name string, value any) EntityStub {
	attrs := make(map[string]any, len(es.attributes)+1)
	for k, v := range es.attributes {
		attrs[k] = v
	}
	attrs[name] = value
	es.attributes = attrs
	return es
}

// Persisted marca a entidade como já gravada, com um ID aleatório.
func (es EntityStub) Persisted() EntityStub {
	es.id = gofakeit.Int64()
	if es.id < 0 {
		es.id = -es.id
	}
	es.persisted = true
	return es
}

func (es EntityStub) Get() *entities.Entity {
	if es.persisted {
		return entities.Hydrate(es.id, es.label, es.attributes)
	}
	return entities.New(es.label, es.attributes)
}

// Attributes devolve apenas o mapa de atributos, para escritas aninhadas.
func (es EntityStub) Attributes() map[string]any {
	return entities.New(es.label, es.attributes).Attributes
}
