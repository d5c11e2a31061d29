package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Comparator is one of the comparison operators accepted by filters and count constraints.
type Comparator string

const (
	Equal          Comparator = "="
	NotEqual       Comparator = "!="
	Greater        Comparator = ">"
	GreaterOrEqual Comparator = ">="
	Less           Comparator = "<"
	LessOrEqual    Comparator = "<="
)

// ParseComparator accepts the operator spellings used by callers ("<>" is an alias of "!=").
func ParseComparator(s string) (Comparator, error) {
	switch c := Comparator(strings.TrimSpace(s)); c {
	case Equal, NotEqual, Greater, GreaterOrEqual, Less, LessOrEqual:
		return c, nil
	case "<>":
		return NotEqual, nil
	case "==":
		return Equal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidComparator, s)
}

func (c Comparator) Valid() bool {
	_, err := ParseComparator(string(c))
	return err == nil
}

// CompareInt applies the comparator to two counts.
func (c Comparator) CompareInt(left, right int) bool {
	switch c {
	case Equal:
		return left == right
	case NotEqual:
		return left != right
	case Greater:
		return left > right
	case GreaterOrEqual:
		return left >= right
	case Less:
		return left < right
	case LessOrEqual:
		return left <= right
	}
	return false
}

// Compare applies the comparator to two scalar attribute values. Numbers of any
// Go numeric type compare numerically, strings lexically, booleans only by (in)equality.
// A missing attribute (nil) only satisfies "!=" against a non-nil value.
func (c Comparator) Compare(left, right any) bool {
	if left == nil || right == nil {
		switch c {
		case Equal:
			return left == nil && right == nil
		case NotEqual:
			return !(left == nil && right == nil)
		}
		return false
	}

	if lf, ok := toFloat(left); ok {
		if rf, ok := toFloat(right); ok {
			switch {
			case lf < rf:
				return c.CompareInt(-1, 0)
			case lf > rf:
				return c.CompareInt(1, 0)
			default:
				return c.CompareInt(0, 0)
			}
		}
	}

	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		return c.CompareInt(strings.Compare(ls, rs), 0)
	}

	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		switch c {
		case Equal:
			return lb == rb
		case NotEqual:
			return lb != rb
		}
		return false
	}

	// tipos incompatíveis: só "!=" é verdadeiro
	return c == NotEqual
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// IsNumeric reports whether v is a Go numeric value.
func IsNumeric(v any) bool {
	_, ok := toFloat(v)
	return ok
}
