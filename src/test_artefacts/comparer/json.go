package comparer

import (
	"bytes"
	"encoding/json"

	"github.com/google/go-cmp/cmp"
)

// JSONRawMessage compares payloads semantically: key order and whitespace are
// ignored, numbers are compared by their literal text.
func JSONRawMessage() cmp.Option {
	return cmp.Comparer(func(x, y json.RawMessage) bool {
		if len(x) == 0 || len(y) == 0 {
			return len(x) == len(y)
		}

		xv, xerr := decodeJSON(x)
		yv, yerr := decodeJSON(y)
		if xerr != nil || yerr != nil {
			return false
		}
		return cmp.Equal(xv, yv)
	})
}

func decodeJSON(raw json.RawMessage) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
