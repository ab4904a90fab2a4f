package tag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Taggable is anything that can be turned into a Reference, optionally
// parameterized by extra bindings.
type Taggable interface {
	Key(ctx ...Context) Reference
}

// Binding pairs a key reference with its value.
type Binding struct {
	Key   Reference
	Value any
}

// Bind is the Binding constructor.
func Bind(key Taggable, value any) Binding {
	return Binding{Key: key.Key(), Value: value}
}

// Context is an immutable set of bindings. Keys are normalized to their
// canonical reference id, so two keys naming the same tag and bindings
// collapse into one entry. Values compare by their %v form.
type Context struct {
	entries map[string]Binding
}

// NewContext builds a Context; later bindings win over earlier ones.
func NewContext(bindings ...Binding) Context {
	if len(bindings) == 0 {
		return Context{}
	}
	entries := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		entries[b.Key.ID()] = b
	}
	return Context{entries: entries}
}

// ContextOf builds a Context from a tag-keyed map.
func ContextOf(m map[*Tag]any) Context {
	bindings := make([]Binding, 0, len(m))
	for k, v := range m {
		bindings = append(bindings, Bind(k, v))
	}
	return NewContext(bindings...)
}

// With returns a copy of c with key bound to value.
func (c Context) With(key Taggable, value any) Context {
	return c.Merge(NewContext(Bind(key, value)))
}

// Merge returns the union of c and o; o wins on shared keys.
func (c Context) Merge(o Context) Context {
	if len(o.entries) == 0 {
		return c
	}
	if len(c.entries) == 0 {
		return o
	}
	entries := make(map[string]Binding, len(c.entries)+len(o.entries))
	for k, b := range c.entries {
		entries[k] = b
	}
	for k, b := range o.entries {
		entries[k] = b
	}
	return Context{entries: entries}
}

// Get returns the value bound to key.
func (c Context) Get(key Taggable) (any, bool) {
	return c.getID(key.Key().ID())
}

func (c Context) getID(id string) (any, bool) {
	b, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return b.Value, true
}

func (c Context) Len() int { return len(c.entries) }

func (c Context) IsEmpty() bool { return len(c.entries) == 0 }

// Bindings returns the bindings ordered by key id.
func (c Context) Bindings() []Binding {
	out := make([]Binding, 0, len(c.entries))
	for _, k := range c.keys() {
		out = append(out, c.entries[k])
	}
	return out
}

// Equal reports whether both contexts bind the same keys to equal values,
// independent of insertion order.
func (c Context) Equal(o Context) bool {
	if len(c.entries) != len(o.entries) {
		return false
	}
	for k, b := range c.entries {
		ob, ok := o.entries[k]
		if !ok || formatValue(b.Value) != formatValue(ob.Value) {
			return false
		}
	}
	return true
}

// String is the canonical form, `{key="value", ...}` sorted by key, or "" when
// empty. Values are quoted so that distinct contexts never share a string.
func (c Context) String() string {
	if len(c.entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range c.keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.Quote(formatValue(c.entries[k].Value)))
	}
	sb.WriteByte('}')
	return sb.String()
}

func (c Context) keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v any) string {
	return fmt.Sprintf("%v", v)
}
