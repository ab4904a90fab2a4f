package tag

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/DensusHere/mywallet-sub001/errors"
)

// WellKnown names the tags whose presence in a type set drives the
// collection and leaf predicates.
type WellKnown struct {
	Collection string
	Leaf       string
	StateValue string
}

// DefaultWellKnown derives the well-known ids from a root id.
func DefaultWellKnown(root string) WellKnown {
	return WellKnown{
		Collection: root + ".db.collection",
		Leaf:       root + ".db.leaf",
		StateValue: root + ".session.state.value",
	}
}

// Option configures a Language.
type Option func(*Language)

// WithWellKnown overrides the well-known ids.
func WithWellKnown(w WellKnown) Option {
	return func(l *Language) {
		l.wellKnown = w
	}
}

// WithLogger sets the logger used for graph inconsistencies found during resolution.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Language) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMissHook registers a function called with every id that fails to resolve.
// The hook runs without the language lock held.
func WithMissHook(fn func(id string)) Option {
	return func(l *Language) {
		l.onMiss = fn
	}
}

// Language owns the graph and every Tag resolved from it.
//
// All derived tag properties are memoized on first access. A single mutex
// per Language guards the graph, the node cache and every memo, so Tags are
// safe to share between goroutines.
type Language struct {
	mu sync.Mutex

	graph     *Graph
	name      string
	wellKnown WellKnown
	logger    *slog.Logger
	onMiss    func(id string)

	// raw holds exactly one Tag per id as reached through the graph.
	raw map[string]*Tag
	// nodes is the lookup cache; a synonym id is remapped to its canonical tag.
	nodes map[string]*Tag
	none  *Tag
}

// New creates a Language over graph. The graph must declare at least one root
// and is owned by the Language afterwards.
func New(graph *Graph, opts ...Option) (*Language, error) {
	if graph == nil || len(graph.Roots) == 0 {
		return nil, errors.WrapFatal(errors.ErrInvalidGraph, "Language", "New", "graph has no roots")
	}
	for _, root := range graph.Roots {
		if _, ok := graph.Nodes[root]; !ok {
			return nil, errors.WrapFatal(errors.ErrInvalidGraph, "Language", "New",
				fmt.Sprintf("root %q is not declared", root))
		}
	}

	l := &Language{
		graph:     graph,
		name:      graph.Roots[0],
		wellKnown: DefaultWellKnown(graph.Roots[0]),
		logger:    slog.Default(),
		raw:       make(map[string]*Tag),
		nodes:     make(map[string]*Tag),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.none = &Tag{language: l, def: &Definition{}}
	return l, nil
}

// MustNew is New for statically known graphs; it panics on error.
func MustNew(graph *Graph, opts ...Option) *Language {
	l, err := New(graph, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// Name is the id of the first root.
func (l *Language) Name() string { return l.name }

// WellKnown returns the configured well-known ids.
func (l *Language) WellKnown() WellKnown { return l.wellKnown }

// None is the sentinel tag with an empty id and no parent.
func (l *Language) None() *Tag { return l.none }

// Lookup resolves id to its canonical tag.
func (l *Language) Lookup(id string) (*Tag, bool) {
	l.mu.Lock()
	t := l.resolve(id)
	l.mu.Unlock()

	if t == nil {
		if l.onMiss != nil {
			l.onMiss(id)
		}
		return nil, false
	}
	return t, true
}

// Tag is Lookup returning a *NotInLanguageError when id does not resolve.
func (l *Language) Tag(id string) (*Tag, error) {
	t, ok := l.Lookup(id)
	if !ok {
		return nil, &NotInLanguageError{ID: id, Language: l.name}
	}
	return t, nil
}

// MustTag is Tag for ids known to be declared; it panics on error.
func (l *Language) MustTag(id string) *Tag {
	t, err := l.Tag(id)
	if err != nil {
		panic(err)
	}
	return t
}

// Add declares a child named def.Name under parentID at runtime and returns
// it. Adding a name that already resolves under the parent returns the
// existing child.
func (l *Language) Add(parentID string, def Definition) (*Tag, error) {
	if def.Name == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Language", "Add", "child name is empty")
	}
	if _, _, nested := Split(def.Name); nested {
		return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Language", "Add",
			fmt.Sprintf("child name %q contains a separator", def.Name))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	parent := l.walk(parentID)
	if parent == nil || parent == l.none {
		return nil, &NotInLanguageError{ID: parentID, Language: l.name}
	}
	if existing, ok := parent.childrenLocked()[def.Name]; ok {
		return existing, nil
	}

	def.ID = parent.id + "." + def.Name
	stored := def
	l.graph.Nodes[def.ID] = &stored
	if parent.def.ID == parent.id && !parent.def.hasChild(def.Name) {
		parent.def.Children = append(parent.def.Children, def.Name)
	}

	child := l.child(parent, def.Name, &stored)
	parent.added = append(parent.added, def.Name)
	if parent.ownChildren.done {
		parent.ownChildren.value[def.Name] = child
	}
	if parent.children.done {
		parent.children.value[def.Name] = child
	}
	return child, nil
}

// Len is the number of ids in the lookup cache.
func (l *Language) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nodes)
}

// IDs returns the ids resolved so far in lexical order.
func (l *Language) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.nodes))
	for id := range l.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// resolve returns the canonical tag for id. The caller holds l.mu.
func (l *Language) resolve(id string) *Tag {
	if id == "" {
		return l.none
	}
	if cached, ok := l.nodes[id]; ok && cached.id != id {
		return cached
	}

	t := l.walk(id)
	if t == nil {
		return nil
	}
	if p := t.protonymLocked(); p != nil {
		l.nodes[id] = p
		return p
	}
	return t
}

// walk finds the raw tag for id by descending from its root through memoized
// children. The caller holds l.mu.
func (l *Language) walk(id string) *Tag {
	if id == "" {
		return l.none
	}
	if t, ok := l.raw[id]; ok {
		return t
	}

	parentID, name, hasParent := Split(id)
	if !hasParent {
		def, ok := l.graph.Nodes[id]
		if !ok || !l.graph.isRoot(id) {
			return nil
		}
		return l.store(&Tag{id: id, name: name, language: l, def: def})
	}

	parent := l.walk(parentID)
	if parent == nil {
		return nil
	}
	return parent.childrenLocked()[name]
}

// child returns the single raw tag for parent.id + "." + name, creating it
// from def on first use. The caller holds l.mu.
func (l *Language) child(parent *Tag, name string, def *Definition) *Tag {
	id := parent.id + "." + name
	if t, ok := l.raw[id]; ok {
		return t
	}
	return l.store(&Tag{
		id:        id,
		name:      name,
		parentID:  parent.id,
		hasParent: true,
		language:  l,
		def:       def,
	})
}

func (l *Language) store(t *Tag) *Tag {
	l.raw[t.id] = t
	if _, ok := l.nodes[t.id]; !ok {
		l.nodes[t.id] = t
	}
	return t
}

func (l *Language) warn(msg string, args ...any) {
	l.logger.Warn(msg, append([]any{"language", l.name}, args...)...)
}
