package schema

import (
	"fmt"
	"regexp"
	"slices"
	"sync"

	"graphorm/src/domain"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a node label or edge label.
// Labels end up interpolated in Cypher and SQL, so the alphabet is restricted.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Kind is a registered entity kind.
type Kind struct {
	Label string
	// Required lists attributes that must be present and non-empty on create.
	Required []string
}

type kindEntry struct {
	kind      Kind
	relations map[string]Descriptor
	order     []string
}

// Registry resolves entity kinds to their declared relation descriptors.
// Relations are resolved once at registration time.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*kindEntry
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*kindEntry)}
}

func (r *Registry) Register(kind Kind) error {
	if !ValidIdentifier(kind.Label) {
		return fmt.Errorf("schema: invalid kind label %q", kind.Label)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind.Label]; exists {
		return fmt.Errorf("schema: kind %q already registered", kind.Label)
	}
	kind.Required = slices.Clone(kind.Required)
	r.kinds[kind.Label] = &kindEntry{kind: kind, relations: make(map[string]Descriptor)}
	return nil
}

// MustRegister is Register for static schemas; it panics on error.
func (r *Registry) MustRegister(kinds ...Kind) *Registry {
	for _, k := range kinds {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Kind(label string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.kinds[label]
	if !ok {
		return Kind{}, domain.NewInvalidRelationKindError(label, "")
	}
	return entry.kind, nil
}

// Describe declares the relation `name` on the source kind. It performs no I/O.
func (r *Registry) Describe(name, source, target, edgeLabel string, cardinality Cardinality, direction Direction) (Descriptor, error) {
	if name == "" || !ValidIdentifier(edgeLabel) {
		return Descriptor{}, fmt.Errorf("schema: relation %q needs a name and a valid edge label (got %q)", name, edgeLabel)
	}
	if !cardinality.valid() || !direction.valid() {
		return Descriptor{}, fmt.Errorf("schema: relation %q has invalid cardinality %q or direction %q", name, cardinality, direction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.kinds[source]
	if !ok {
		return Descriptor{}, domain.NewInvalidRelationKindError(source, name)
	}
	if _, ok := r.kinds[target]; !ok {
		return Descriptor{}, domain.NewInvalidRelationKindError(target, name)
	}
	if _, exists := src.relations[name]; exists {
		return Descriptor{}, fmt.Errorf("schema: relation %s.%s already declared", source, name)
	}

	d := Descriptor{
		Name:        name,
		Source:      source,
		Target:      target,
		EdgeLabel:   edgeLabel,
		Cardinality: cardinality,
		Direction:   direction,
	}
	src.relations[name] = d
	src.order = append(src.order, name)
	return d, nil
}

func (r *Registry) HasMany(source, name, target, edgeLabel string) (Descriptor, error) {
	return r.Describe(name, source, target, edgeLabel, Many, Outgoing)
}

func (r *Registry) HasOne(source, name, target, edgeLabel string) (Descriptor, error) {
	return r.Describe(name, source, target, edgeLabel, One, Outgoing)
}

// BelongsTo is the inverse side of HasOne/HasMany: the edge points at the source.
func (r *Registry) BelongsTo(source, name, target, edgeLabel string) (Descriptor, error) {
	return r.Describe(name, source, target, edgeLabel, One, Incoming)
}

func (r *Registry) BelongsToMany(source, name, target, edgeLabel string) (Descriptor, error) {
	return r.Describe(name, source, target, edgeLabel, Many, Incoming)
}

func (r *Registry) Relation(kind, name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.kinds[kind]
	if !ok {
		return Descriptor{}, domain.NewInvalidRelationKindError(kind, name)
	}
	d, ok := entry.relations[name]
	if !ok {
		return Descriptor{}, domain.NewUnknownRelationError(kind, name)
	}
	return d, nil
}

// Relations returns the descriptors declared on kind in declaration order.
func (r *Registry) Relations(kind string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.kinds[kind]
	if !ok {
		return nil
	}
	out := make([]Descriptor, 0, len(entry.order))
	for _, name := range entry.order {
		out = append(out, entry.relations[name])
	}
	return out
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	labels := make([]string, 0, len(r.kinds))
	for label := range r.kinds {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}
