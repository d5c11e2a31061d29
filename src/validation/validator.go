package validation

import (
	"strings"

	"graphorm/src/domain"
	"graphorm/src/schema"
)

// Validator decides whether an attribute set may be persisted as the given kind.
type Validator interface {
	Validate(kind schema.Kind, attributes map[string]any) error
}

// RequiredFields rejects attribute sets missing any of the kind's required
// attributes. Nil values and blank strings count as missing.
type RequiredFields struct{}

func (RequiredFields) Validate(kind schema.Kind, attributes map[string]any) error {
	var missing []string
	for _, field := range kind.Required {
		value, ok := attributes[field]
		if !ok || value == nil {
			missing = append(missing, field)
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return &domain.ValidationError{Kind: kind.Label, Missing: missing}
	}
	return nil
}

// Func adapts a function to the Validator interface.
type Func func(kind schema.Kind, attributes map[string]any) error

func (f Func) Validate(kind schema.Kind, attributes map[string]any) error {
	return f(kind, attributes)
}
