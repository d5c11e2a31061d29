package comparer

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"graphorm/src/domain/entities"
)

func IgnoreFieldsFor[T any](fields ...string) cmp.Option {
	var t T
	return cmpopts.IgnoreFields(t, fields...)
}

// Entity compara entidades por label e atributos, ignorando identidade e
// relações carregadas.
func Entity() cmp.Option {
	return cmp.Options{
		IgnoreFieldsFor[entities.Entity]("ID", "Exists"),
		cmpopts.IgnoreUnexported(entities.Entity{}),
		cmpopts.EquateEmpty(),
	}
}
