// Package schema loads tag graphs from YAML or JSON documents.
//
// A document lists the roots and every declared node keyed by its full id:
//
//	roots: [blockchain]
//	nodes:
//	  blockchain.db.collection:
//	    children: [id]
//	  blockchain.user.wallet:
//	    type: [blockchain.db.collection]
//	    children: [balance]
//	  blockchain.ux.swap:
//	    protonym: blockchain.ux.buy
//
// Children listed by a node without their own entry are declared empty.
// Intermediate nodes must be declared, either with an entry or as a listed
// child of their parent.
package schema

import (
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/tag"
)

//go:embed graph.schema.json
var documentSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(documentSchema)

type document struct {
	Roots []string         `yaml:"roots"`
	Nodes map[string]*node `yaml:"nodes"`
}

type node struct {
	Children []string `yaml:"children"`
	Type     []string `yaml:"type"`
	Protonym string   `yaml:"protonym"`
}

// Parse decodes and validates a graph document.
func Parse(data []byte) (*tag.Graph, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "schema", "Parse", err.Error())
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "schema", "Parse", err.Error())
	}
	return build(doc)
}

// Load reads and parses the document at path.
func Load(path string) (*tag.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "schema", "Load", fmt.Sprintf("read %s", path))
	}
	return Parse(data)
}

// LoadFS reads and parses the document at path in fsys.
func LoadFS(fsys fs.FS, path string) (*tag.Graph, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.WrapFatal(err, "schema", "LoadFS", fmt.Sprintf("read %s", path))
	}
	return Parse(data)
}

// LoadLanguage is Load followed by tag.New.
func LoadLanguage(path string, opts ...tag.Option) (*tag.Language, error) {
	g, err := Load(path)
	if err != nil {
		return nil, err
	}
	return tag.New(g, opts...)
}

func validate(raw any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.WrapInvalid(errors.ErrParsingFailed, "schema", "validate", err.Error())
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	sort.Strings(msgs)
	return errors.WrapInvalid(errors.ErrInvalidData, "schema", "validate", strings.Join(msgs, "; "))
}

func build(doc document) (*tag.Graph, error) {
	defs := make(map[string]*tag.Definition, len(doc.Nodes))
	for id, n := range doc.Nodes {
		def := &tag.Definition{ID: id}
		if n != nil {
			def.Children = n.Children
			def.Type = n.Type
			def.Protonym = n.Protonym
		}
		defs[id] = def
	}
	// Implicit declarations for listed children.
	for id, def := range defs {
		for _, child := range def.Children {
			childID := id + "." + child
			if _, ok := defs[childID]; !ok {
				defs[childID] = &tag.Definition{ID: childID}
			}
		}
	}

	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, dj := strings.Count(ids[i], "."), strings.Count(ids[j], ".")
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})

	g := tag.NewGraph(doc.Roots...)
	for _, id := range ids {
		if _, name, nested := tag.Split(id); !nested && !contains(doc.Roots, name) {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "schema", "build",
				fmt.Sprintf("top-level node %q is not a root", id))
		}
		if _, err := g.Declare(*defs[id]); err != nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "schema", "build", err.Error())
		}
	}

	for _, id := range ids {
		def := g.Nodes[id]
		for _, target := range def.Type {
			if _, ok := g.Nodes[target]; !ok {
				return nil, errors.WrapInvalid(errors.ErrInvalidData, "schema", "build",
					fmt.Sprintf("%s: type %q is not declared", id, target))
			}
		}
		if def.Protonym != "" {
			if _, ok := g.Nodes[def.Protonym]; !ok {
				return nil, errors.WrapInvalid(errors.ErrInvalidData, "schema", "build",
					fmt.Sprintf("%s: protonym %q is not declared", id, def.Protonym))
			}
		}
	}
	return g, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
