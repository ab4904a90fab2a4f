package tag

import (
	"sort"
)

// lazy holds a value computed once under the language lock. computing marks
// an evaluation in progress so a re-entrant request can detect a cycle.
type lazy[T any] struct {
	done      bool
	computing bool
	value     T
}

func (z *lazy[T]) get(compute func() T, onCycle func() T) T {
	if z.done {
		return z.value
	}
	if z.computing {
		return onCycle()
	}
	z.computing = true
	v := compute()
	z.computing = false
	z.value = v
	z.done = true
	return v
}

// Tag is one node of a Language. Tags are created and owned by their
// Language; there is exactly one *Tag per resolved id.
type Tag struct {
	id        string
	name      string
	parentID  string
	hasParent bool
	language  *Language
	def       *Definition
	added     []string

	parent           lazy[*Tag]
	protonym         lazy[*Tag]
	ownChildren      lazy[map[string]*Tag]
	children         lazy[map[string]*Tag]
	ownType          lazy[map[string]*Tag]
	typ              lazy[map[string]*Tag]
	lineage          lazy[[]*Tag]
	isCollection     lazy[bool]
	isLeaf           lazy[bool]
	isLeafDescendant lazy[bool]
}

// ID is the full dot path.
func (t *Tag) ID() string { return t.id }

// Name is the last path segment.
func (t *Tag) Name() string { return t.name }

// Language returns the owning language.
func (t *Tag) Language() *Language { return t.language }

// ParentID returns the id of the parent, if any.
func (t *Tag) ParentID() (string, bool) { return t.parentID, t.hasParent }

// Definition returns a copy of the declaring node.
func (t *Tag) Definition() Definition {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	d := *t.def
	d.Type = append([]string(nil), t.def.Type...)
	d.Children = append([]string(nil), t.def.Children...)
	return d
}

// IsNone reports whether t is the language's empty sentinel.
func (t *Tag) IsNone() bool { return t == nil || t.id == "" }

// String returns the id.
func (t *Tag) String() string { return t.id }

// Equal compares tags by id and language.
func (t *Tag) Equal(o *Tag) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return t.language == o.language && t.id == o.id
}

// Key implements Taggable.
func (t *Tag) Key(ctx ...Context) Reference {
	return NewReference(t, ctx...)
}

func (t *Tag) Parent() *Tag {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return t.parentLocked()
}

func (t *Tag) Protonym() *Tag {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return t.protonymLocked()
}

func (t *Tag) OwnChildren() map[string]*Tag {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return copyTags(t.ownChildrenLocked())
}

// Children returns the direct children, including those inherited from
// supertags or from the protonym.
func (t *Tag) Children() map[string]*Tag {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return copyTags(t.childrenLocked())
}

// ChildNames returns the names of Children in lexical order.
func (t *Tag) ChildNames() []string {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return sortedNames(t.childrenLocked())
}

func (t *Tag) OwnType() map[string]*Tag {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return copyTags(t.ownTypeLocked())
}

// Type returns t and every tag it transitively is, keyed by id.
func (t *Tag) Type() map[string]*Tag {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return copyTags(t.typeLocked())
}

// Lineage returns t followed by its ancestors up to the root.
func (t *Tag) Lineage() []*Tag {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return append([]*Tag(nil), t.lineageLocked()...)
}

func (t *Tag) IsCollection() bool {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return t.isCollectionLocked()
}

func (t *Tag) IsLeaf() bool {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return t.isLeafLocked()
}

func (t *Tag) IsLeafDescendant() bool {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	return t.isLeafDescendantLocked()
}

// Is reports whether t satisfies every given type.
func (t *Tag) Is(types ...Taggable) bool {
	ids := make([]string, 0, len(types))
	for _, typ := range types {
		id, ok := typeID(typ)
		if !ok {
			return false
		}
		ids = append(ids, id)
	}

	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	typeSet := t.typeLocked()
	for _, id := range ids {
		if _, ok := typeSet[id]; !ok {
			return false
		}
	}
	return true
}

// IsAncestor reports whether t is a strict dot-path prefix of o.
func (t *Tag) IsAncestor(of *Tag) bool {
	if t.IsNone() || of == nil {
		return false
	}
	return len(of.id) > len(t.id) && of.id[:len(t.id)] == t.id && of.id[len(t.id)] == '.'
}

// IsDescendant reports whether o is a strict dot-path prefix of t.
func (t *Tag) IsDescendant(of *Tag) bool {
	if of == nil {
		return false
	}
	return of.IsAncestor(t)
}

// Child returns the named child or a *ChildNotFoundError.
func (t *Tag) Child(name string) (*Tag, error) {
	t.language.mu.Lock()
	defer t.language.mu.Unlock()
	children := t.childrenLocked()
	if c, ok := children[name]; ok {
		return c, nil
	}
	return nil, &ChildNotFoundError{Parent: t.id, Name: name, Available: sortedNames(children)}
}

// Get returns the named child or nil.
func (t *Tag) Get(name string) *Tag {
	c, _ := t.Child(name)
	return c
}

// Descendant follows path through successive children.
func (t *Tag) Descendant(path ...string) (*Tag, error) {
	cur := t
	for _, name := range path {
		next, err := cur.Child(name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// As returns t when it satisfies typ.
func (t *Tag) As(typ Taggable) (*Tag, error) {
	if !t.Is(typ) {
		id, _ := typeID(typ)
		return nil, &TypeMismatchError{ID: t.id, Type: id}
	}
	return t, nil
}

// typeID is the id of the tag typ refers to; a nil typ or a reference
// without a tag has none.
func typeID(typ Taggable) (string, bool) {
	if typ == nil {
		return "", false
	}
	target := typ.Key().Tag()
	if target == nil {
		return "", false
	}
	return target.id, true
}

// Ancestor returns the lineage member with the given id.
func (t *Tag) Ancestor(id string) (*Tag, error) {
	for _, a := range t.Lineage() {
		if a.id == id {
			return a, nil
		}
	}
	return nil, &NotAncestorError{ID: t.id, Ancestor: id}
}

// Closest returns the nearest lineage member, t included, that is typ.
func (t *Tag) Closest(typ Taggable) (*Tag, bool) {
	for _, a := range t.Lineage() {
		if a.Is(typ) {
			return a, true
		}
	}
	return nil, false
}

// The methods below run with t.language.mu held.

func (t *Tag) parentLocked() *Tag {
	return t.parent.get(func() *Tag {
		if !t.hasParent {
			return nil
		}
		return t.language.walk(t.parentID)
	}, nilTag)
}

func (t *Tag) protonymLocked() *Tag {
	return t.protonym.get(func() *Tag {
		if !t.def.IsSynonym() {
			return nil
		}
		p := t.language.resolve(t.def.Protonym)
		if p == nil {
			t.language.warn("protonym does not resolve", "id", t.id, "protonym", t.def.Protonym)
			return nil
		}
		if p == t {
			return nil
		}
		t.language.nodes[t.id] = p
		return p
	}, func() *Tag {
		t.language.warn("protonym cycle", "id", t.id)
		return nil
	})
}

func (t *Tag) ownChildrenLocked() map[string]*Tag {
	return t.ownChildren.get(func() map[string]*Tag {
		l := t.language
		out := make(map[string]*Tag, len(t.def.Children))
		for _, name := range t.def.Children {
			def, ok := l.graph.Nodes[t.def.ID+"."+name]
			if !ok {
				def = &Definition{ID: t.def.ID + "." + name, Name: name}
			}
			out[name] = l.child(t, name, def)
		}
		for _, name := range t.added {
			if def, ok := l.graph.Nodes[t.id+"."+name]; ok {
				out[name] = l.child(t, name, def)
			}
		}
		return out
	}, emptyTags)
}

func (t *Tag) childrenLocked() map[string]*Tag {
	return t.children.get(func() map[string]*Tag {
		l := t.language
		if p := t.protonymLocked(); p != nil {
			inherited := p.childrenLocked()
			out := make(map[string]*Tag, len(inherited))
			for name, c := range inherited {
				out[name] = l.child(t, name, c.def)
			}
			return out
		}

		own := t.ownChildrenLocked()
		out := make(map[string]*Tag, len(own))
		for name, c := range own {
			out[name] = c
		}
		for _, super := range sortedTags(t.ownTypeLocked()) {
			for name, c := range super.childrenLocked() {
				if _, exists := out[name]; exists {
					continue
				}
				out[name] = l.child(t, name, c.def)
			}
		}
		return out
	}, func() map[string]*Tag {
		t.language.warn("children cycle", "id", t.id)
		return t.ownChildrenLocked()
	})
}

func (t *Tag) ownTypeLocked() map[string]*Tag {
	return t.ownType.get(func() map[string]*Tag {
		out := make(map[string]*Tag, len(t.def.Type))
		for _, id := range t.def.Type {
			super := t.language.resolve(id)
			if super == nil || super == t.language.none {
				t.language.warn("supertag does not resolve", "id", t.id, "type", id)
				continue
			}
			out[super.id] = super
		}
		return out
	}, emptyTags)
}

// typeLocked walks supertags breadth first; the visited set makes cyclic
// declarations terminate.
func (t *Tag) typeLocked() map[string]*Tag {
	return t.typ.get(func() map[string]*Tag {
		out := map[string]*Tag{t.id: t}
		queue := []*Tag{t}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]

			var next []*Tag
			if p := cur.protonymLocked(); p != nil {
				next = []*Tag{p}
			} else {
				next = sortedTags(cur.ownTypeLocked())
			}
			for _, n := range next {
				if _, seen := out[n.id]; seen {
					continue
				}
				out[n.id] = n
				queue = append(queue, n)
			}
		}
		return out
	}, func() map[string]*Tag {
		return map[string]*Tag{t.id: t}
	})
}

func (t *Tag) lineageLocked() []*Tag {
	return t.lineage.get(func() []*Tag {
		out := []*Tag{t}
		for cur := t.parentLocked(); cur != nil; cur = cur.parentLocked() {
			out = append(out, cur)
		}
		return out
	}, func() []*Tag { return []*Tag{t} })
}

func (t *Tag) isLocked(id string) bool {
	_, ok := t.typeLocked()[id]
	return ok
}

func (t *Tag) isCollectionLocked() bool {
	return t.isCollection.get(func() bool {
		return t.isLocked(t.language.wellKnown.Collection)
	}, falseFn)
}

func (t *Tag) isLeafLocked() bool {
	return t.isLeaf.get(func() bool {
		wk := t.language.wellKnown
		if !t.hasParent || t.isLocked(wk.StateValue) || t.isLeafDescendantLocked() {
			return false
		}
		return len(t.childrenLocked()) == 0 || t.isLocked(wk.Leaf)
	}, falseFn)
}

func (t *Tag) isLeafDescendantLocked() bool {
	return t.isLeafDescendant.get(func() bool {
		p := t.parentLocked()
		if p == nil {
			return false
		}
		return p.isLeafDescendantLocked() || p.isLeafLocked()
	}, falseFn)
}

func nilTag() *Tag               { return nil }
func falseFn() bool              { return false }
func emptyTags() map[string]*Tag { return map[string]*Tag{} }

func copyTags(in map[string]*Tag) map[string]*Tag {
	out := make(map[string]*Tag, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedNames(in map[string]*Tag) []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTags(in map[string]*Tag) []*Tag {
	out := make([]*Tag, 0, len(in))
	for _, name := range sortedNames(in) {
		out = append(out, in[name])
	}
	return out
}
