package tag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DensusHere/mywallet-sub001/errors"
)

// Definition is the declaration of one node of the graph.
type Definition struct {
	ID       string   // full dot path
	Name     string   // last path segment
	Protonym string   // id of the canonical node when this node is a synonym
	Type     []string // ids of supertags ("is-a")
	Children []string // names of directly declared children
}

// IsSynonym reports whether the node declares a protonym.
func (d *Definition) IsSynonym() bool {
	return d != nil && d.Protonym != ""
}

func (d *Definition) hasChild(name string) bool {
	for _, c := range d.Children {
		if c == name {
			return true
		}
	}
	return false
}

// Graph is the declarative schema loaded into a Language.
// Nodes are keyed by their full id.
type Graph struct {
	Roots []string
	Nodes map[string]*Definition
}

// NewGraph returns an empty graph with the given root ids declared.
func NewGraph(roots ...string) *Graph {
	g := &Graph{Nodes: make(map[string]*Definition)}
	for _, root := range roots {
		g.Roots = append(g.Roots, root)
		g.Nodes[root] = &Definition{ID: root, Name: root}
	}
	return g
}

// Declare adds a node under its parent, which must already be declared, and
// lists it among the parent's children. Redeclaring an id merges children and
// types into the existing definition.
func (g *Graph) Declare(def Definition) (*Definition, error) {
	if def.ID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Graph", "Declare", "empty node id")
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Definition)
	}

	parentID, name, hasParent := Split(def.ID)
	if name == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Graph", "Declare",
			fmt.Sprintf("empty segment in %q", def.ID))
	}
	def.Name = name

	if !hasParent {
		if !g.isRoot(def.ID) {
			g.Roots = append(g.Roots, def.ID)
		}
	} else {
		parent, ok := g.Nodes[parentID]
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidGraph, "Graph", "Declare",
				fmt.Sprintf("parent %q of %q is not declared", parentID, def.ID))
		}
		if !parent.hasChild(name) {
			parent.Children = append(parent.Children, name)
		}
	}

	if existing, ok := g.Nodes[def.ID]; ok {
		existing.Type = mergeStrings(existing.Type, def.Type)
		existing.Children = mergeStrings(existing.Children, def.Children)
		if def.Protonym != "" {
			existing.Protonym = def.Protonym
		}
		return existing, nil
	}

	stored := def
	stored.Type = append([]string(nil), def.Type...)
	stored.Children = append([]string(nil), def.Children...)
	g.Nodes[def.ID] = &stored
	return &stored, nil
}

// MustDeclare is Declare for statically known graphs; it panics on error.
func (g *Graph) MustDeclare(def Definition) *Definition {
	d, err := g.Declare(def)
	if err != nil {
		panic(err)
	}
	return d
}

// IDs returns all declared ids in lexical order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Graph) isRoot(id string) bool {
	for _, r := range g.Roots {
		if r == id {
			return true
		}
	}
	return false
}

// Split separates an id into its parent id and last segment.
func Split(id string) (parentID, name string, hasParent bool) {
	i := strings.LastIndexByte(id, '.')
	if i < 0 {
		return "", id, false
	}
	return id[:i], id[i+1:], true
}

func mergeStrings(base, extra []string) []string {
	for _, e := range extra {
		found := false
		for _, b := range base {
			if b == e {
				found = true
				break
			}
		}
		if !found {
			base = append(base, e)
		}
	}
	return base
}
