package neo4j

import (
	"fmt"
	"strings"

	"graphorm/src/domain"
	"graphorm/src/graph"
	"graphorm/src/schema"
)

// renderer turns a traversal into Cypher. Relation fragments become EXISTS or
// COUNT subqueries over distinct related nodes so roots are never repeated.
type renderer struct {
	params map[string]any
	alias  int
}

// RenderQuery returns the Cypher text and parameters for spec.
// Labels, edge labels and attribute names are validated before they are
// interpolated; every value travels as a parameter.
func RenderQuery(spec graph.TraversalSpec) (string, map[string]any, error) {
	if err := spec.Validate(); err != nil {
		return "", nil, err
	}

	r := &renderer{params: map[string]any{}}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MATCH (n0:`%s`)", spec.Root.Label)
	if where := r.where("n0", spec.Root); where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	sb.WriteString(" RETURN id(n0) AS id, properties(n0) AS properties ORDER BY id(n0)")
	if spec.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", spec.Limit)
	}
	return sb.String(), r.params, nil
}

func (r *renderer) bind(v any) string {
	name := fmt.Sprintf("p%d", len(r.params)+1)
	r.params[name] = v
	return "$" + name
}

func (r *renderer) where(alias string, m graph.Match) string {
	var parts []string
	for _, c := range m.Conditions {
		parts = append(parts, r.condition(alias, c))
	}
	for _, f := range m.Fragments {
		parts = append(parts, r.fragment(alias, f))
	}
	return strings.Join(parts, " AND ")
}

func (r *renderer) condition(alias string, c graph.Condition) string {
	subject := fmt.Sprintf("%s.`%s`", alias, c.Attribute)
	if c.Attribute == graph.IdentityAttribute {
		subject = fmt.Sprintf("id(%s)", alias)
	}

	if c.Value == nil {
		switch c.Comparator {
		case domain.Equal:
			return subject + " IS NULL"
		case domain.NotEqual:
			return subject + " IS NOT NULL"
		}
		return "false"
	}
	return fmt.Sprintf("%s %s %s", subject, cypherOperator(c.Comparator), r.bind(propertyValue(c.Value)))
}

func (r *renderer) fragment(alias string, f graph.Fragment) string {
	r.alias++
	target := fmt.Sprintf("n%d", r.alias)

	var pattern string
	switch f.Direction {
	case schema.Outgoing:
		pattern = fmt.Sprintf("(%s)-[:`%s`]->(%s:`%s`)", alias, f.EdgeLabel, target, f.Target.Label)
	case schema.Incoming:
		pattern = fmt.Sprintf("(%s)<-[:`%s`]-(%s:`%s`)", alias, f.EdgeLabel, target, f.Target.Label)
	default:
		pattern = fmt.Sprintf("(%s)-[:`%s`]-(%s:`%s`)", alias, f.EdgeLabel, target, f.Target.Label)
	}

	body := "MATCH " + pattern
	if where := r.where(target, f.Target); where != "" {
		body += " WHERE " + where
	}

	if f.Comparator == domain.GreaterOrEqual && f.Count == 1 {
		return fmt.Sprintf("EXISTS { %s }", body)
	}
	return fmt.Sprintf("COUNT { %s RETURN DISTINCT %s } %s %s", body, target, cypherOperator(f.Comparator), r.bind(int64(f.Count)))
}

func cypherOperator(c domain.Comparator) string {
	if c == domain.NotEqual {
		return "<>"
	}
	return string(c)
}
