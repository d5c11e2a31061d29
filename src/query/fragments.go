package query

import (
	"graphorm/src/domain"
	"graphorm/src/graph"
	"graphorm/src/schema"
)

// ExistsFragment asserts at least one related node exists over the descriptor's edge.
func ExistsFragment(d schema.Descriptor) graph.Fragment {
	return CountFragment(d, domain.GreaterOrEqual, 1)
}

// ConstrainedExistsFragment is ExistsFragment where the related node must also
// satisfy nested. The nested match may carry its own fragments.
func ConstrainedExistsFragment(d schema.Descriptor, nested graph.Match) graph.Fragment {
	f := ExistsFragment(d)
	f.Target = nested
	f.Target.Label = d.Target
	return f
}

// CountFragment filters roots by `count(distinct related) <cmp> n`.
func CountFragment(d schema.Descriptor, cmp domain.Comparator, n int) graph.Fragment {
	return graph.Fragment{
		Relation:   d.Name,
		EdgeLabel:  d.EdgeLabel,
		Direction:  d.Direction,
		Target:     graph.Match{Label: d.Target},
		Comparator: cmp,
		Count:      n,
	}
}

// inverseFragment matches nodes of d.Target related to the given source identity.
func inverseFragment(d schema.Descriptor, sourceID int64) graph.Fragment {
	return graph.Fragment{
		Relation:  d.Name,
		EdgeLabel: d.EdgeLabel,
		Direction: d.Direction.Reverse(),
		Target: graph.Match{
			Label: d.Source,
			Conditions: []graph.Condition{
				{Attribute: graph.IdentityAttribute, Comparator: domain.Equal, Value: sourceID},
			},
		},
		Comparator: domain.GreaterOrEqual,
		Count:      1,
	}
}
