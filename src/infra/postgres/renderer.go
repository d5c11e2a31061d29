package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"graphorm/src/domain"
	"graphorm/src/graph"
	"graphorm/src/schema"
)

// renderer translates a traversal into one SELECT over the entities/edges
// tables. Every relation fragment becomes a correlated subquery counting
// distinct related entities, so roots are never multiplied by joins.
type renderer struct {
	args   []any
	alias  int
	errors []error
}

// RenderQuery returns the SQL and positional arguments for spec.
func RenderQuery(spec graph.TraversalSpec) (string, []any, error) {
	if err := spec.Validate(); err != nil {
		return "", nil, err
	}

	r := &renderer{}
	where := r.match("n0", spec.Root)
	if len(r.errors) > 0 {
		return "", nil, r.errors[0]
	}

	var sb strings.Builder
	sb.WriteString("SELECT n0.id, n0.type, n0.properties FROM entities n0 WHERE ")
	sb.WriteString(where)
	sb.WriteString(" ORDER BY n0.id")
	if spec.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", spec.Limit)
	}
	return sb.String(), r.args, nil
}

func (r *renderer) bind(v any) string {
	r.args = append(r.args, v)
	return fmt.Sprintf("$%d", len(r.args))
}

func (r *renderer) next(prefix string) string {
	r.alias++
	return fmt.Sprintf("%s%d", prefix, r.alias)
}

func (r *renderer) match(alias string, m graph.Match) string {
	parts := []string{fmt.Sprintf("%s.type = %s", alias, r.bind(m.Label))}
	for _, c := range m.Conditions {
		parts = append(parts, r.condition(alias, c))
	}
	for _, f := range m.Fragments {
		parts = append(parts, r.fragment(alias, f))
	}
	return strings.Join(parts, " AND ")
}

func (r *renderer) condition(alias string, c graph.Condition) string {
	if c.Attribute == graph.IdentityAttribute {
		return fmt.Sprintf("%s.id %s %s", alias, sqlOperator(c.Comparator), r.bind(c.Value))
	}

	if c.Value == nil {
		nullTest := fmt.Sprintf("COALESCE(%s.properties -> %s, 'null'::jsonb) = 'null'::jsonb", alias, r.bind(c.Attribute))
		switch c.Comparator {
		case domain.Equal:
			return nullTest
		case domain.NotEqual:
			return "NOT " + nullTest
		}
		return "FALSE"
	}

	switch c.Comparator {
	case domain.Equal, domain.NotEqual:
		// containment usa o índice GIN de properties
		search, err := BuildSearchJSON(c.Attribute, c.Value)
		if err != nil {
			r.errors = append(r.errors, fmt.Errorf("postgres: condition on %s: %w", c.Attribute, err))
			return "FALSE"
		}
		containment := fmt.Sprintf("%s.properties @> %s::jsonb", alias, r.bind(search))
		if c.Comparator == domain.NotEqual {
			return "NOT " + containment
		}
		return containment
	}

	jsonType := jsonTypeOf(c.Value)
	if jsonType != "number" && jsonType != "string" {
		return "FALSE"
	}
	value, err := json.Marshal(c.Value)
	if err != nil {
		r.errors = append(r.errors, fmt.Errorf("postgres: condition on %s: %w", c.Attribute, err))
		return "FALSE"
	}
	key := r.bind(c.Attribute)
	typ := r.bind(jsonType)
	return fmt.Sprintf("(jsonb_typeof(%s.properties -> %s) = %s AND %s.properties -> %s %s %s::jsonb)",
		alias, key, typ, alias, key, sqlOperator(c.Comparator), r.bind(string(value)))
}

func (r *renderer) fragment(alias string, f graph.Fragment) string {
	target := r.next("n")
	edge := r.next("e")

	var join string
	switch f.Direction {
	case schema.Outgoing:
		join = fmt.Sprintf("%[1]s.left_entity_id = %[2]s.id AND %[3]s.id = %[1]s.right_entity_id", edge, alias, target)
	case schema.Incoming:
		join = fmt.Sprintf("%[1]s.right_entity_id = %[2]s.id AND %[3]s.id = %[1]s.left_entity_id", edge, alias, target)
	default:
		join = fmt.Sprintf("((%[1]s.left_entity_id = %[2]s.id AND %[3]s.id = %[1]s.right_entity_id) OR (%[1]s.right_entity_id = %[2]s.id AND %[3]s.id = %[1]s.left_entity_id))", edge, alias, target)
	}

	edgeLabel := r.bind(f.EdgeLabel)
	nested := r.match(target, f.Target)
	from := fmt.Sprintf("FROM edges %s JOIN entities %s ON %s WHERE %s.relationship_type = %s AND %s", edge, target, join, edge, edgeLabel, nested)

	if f.Comparator == domain.GreaterOrEqual && f.Count == 1 {
		return fmt.Sprintf("EXISTS (SELECT 1 %s)", from)
	}
	return fmt.Sprintf("(SELECT COUNT(DISTINCT %s.id) %s) %s %s", target, from, sqlOperator(f.Comparator), r.bind(f.Count))
}

func sqlOperator(c domain.Comparator) string {
	if c == domain.NotEqual {
		return "<>"
	}
	return string(c)
}

func jsonTypeOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if domain.IsNumeric(v) {
		return "number"
	}
	return "object"
}
