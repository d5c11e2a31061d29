package schema

import "fmt"

type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Direction of the edge as seen from the declaring (source) kind.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	// Either matches edges in both directions; writes create them outgoing.
	Either Direction = "either"
)

// Reverse returns the direction seen from the other end of the edge.
func (d Direction) Reverse() Direction {
	switch d {
	case Outgoing:
		return Incoming
	case Incoming:
		return Outgoing
	}
	return d
}

func (d Direction) valid() bool {
	return d == Outgoing || d == Incoming || d == Either
}

func (c Cardinality) valid() bool {
	return c == One || c == Many
}

// Descriptor declares one typed edge between two entity kinds. It is an
// immutable value shared by every instance of the source kind.
type Descriptor struct {
	Name        string
	Source      string
	Target      string
	EdgeLabel   string
	Cardinality Cardinality
	Direction   Direction
}

func (d Descriptor) Many() bool {
	return d.Cardinality == Many
}

func (d Descriptor) String() string {
	arrowL, arrowR := "-", "->"
	switch d.Direction {
	case Incoming:
		arrowL, arrowR = "<-", "-"
	case Either:
		arrowL, arrowR = "-", "-"
	}
	return fmt.Sprintf("%s.%s (%s)%s[:%s]%s(%s) %s", d.Source, d.Name, d.Source, arrowL, d.EdgeLabel, arrowR, d.Target, d.Cardinality)
}
