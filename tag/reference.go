package tag

import (
	"strings"
)

// IndexChild is the child of a collection whose binding selects an element.
const IndexChild = "id"

// Reference is a tag plus the bindings that parameterize it. It is a value
// type; use ID as a map key.
type Reference struct {
	tag     *Tag
	context Context
}

// NewReference merges ctx left to right into a reference to t.
func NewReference(t *Tag, ctx ...Context) Reference {
	r := Reference{tag: t}
	for _, c := range ctx {
		r.context = r.context.Merge(c)
	}
	return r
}

func (r Reference) Tag() *Tag { return r.tag }

func (r Reference) Context() Context { return r.context }

// Key implements Taggable; new bindings win over existing ones.
func (r Reference) Key(ctx ...Context) Reference {
	return NewReference(r.tag, append([]Context{r.context}, ctx...)...)
}

// Equal compares tag identity and the binding set.
func (r Reference) Equal(o Reference) bool {
	return r.tag.Equal(o.tag) && r.context.Equal(o.context)
}

// ID is the canonical key string: the tag id followed by the sorted bindings.
func (r Reference) ID() string {
	if r.tag == nil {
		return r.context.String()
	}
	return r.tag.id + r.context.String()
}

// Index is the value bound for one collection in a reference's lineage.
type Index struct {
	Collection *Tag
	Value      any
}

// Indices returns the bound collection indices from the root down. The
// referenced tag itself is included when it is a collection with a bound index.
func (r Reference) Indices() []Index {
	if r.tag == nil {
		return nil
	}
	var out []Index
	lineage := r.tag.Lineage()
	for i := len(lineage) - 1; i >= 0; i-- {
		a := lineage[i]
		if !a.IsCollection() {
			continue
		}
		if v, ok := r.context.getID(a.id + "." + IndexChild); ok {
			out = append(out, Index{Collection: a, Value: v})
		}
	}
	return out
}

// String renders the lineage path with collection indices, for example
// "blockchain.user.wallet[42].balance".
func (r Reference) String() string {
	if r.tag.IsNone() {
		return ""
	}
	lineage := r.tag.Lineage()
	var sb strings.Builder
	for i := len(lineage) - 1; i >= 0; i-- {
		a := lineage[i]
		if i != len(lineage)-1 {
			sb.WriteByte('.')
		}
		sb.WriteString(a.name)
		if !a.IsCollection() {
			continue
		}
		if v, ok := r.context.getID(a.id + "." + IndexChild); ok {
			sb.WriteByte('[')
			sb.WriteString(formatValue(v))
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

// Validated returns r unchanged when every collection strictly above the
// referenced tag has a bound index, and a *MissingIndicesError otherwise.
func (r Reference) Validated() (Reference, error) {
	if r.tag == nil {
		return r, nil
	}
	var missing []string
	lineage := r.tag.Lineage()
	for i := len(lineage) - 1; i >= 1; i-- {
		a := lineage[i]
		if !a.IsCollection() {
			continue
		}
		if _, ok := r.context.getID(a.id + "." + IndexChild); !ok {
			missing = append(missing, a.id+"."+IndexChild)
		}
	}
	if len(missing) > 0 {
		return r, &MissingIndicesError{ID: r.tag.id, Missing: missing}
	}
	return r, nil
}
