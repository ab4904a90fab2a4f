package schema

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DensusHere/mywallet-sub001/errors"
	"github.com/DensusHere/mywallet-sub001/tag"
)

func TestParse_YAML(t *testing.T) {
	g, err := Parse([]byte(`
roots: [app]
nodes:
  app:
    children: [a, b]
  app.a:
    type: [app.b]
  app.b:
    children: [leaf]
  app.c:
    protonym: app.a
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"app"}, g.Roots)
	assert.Contains(t, g.Nodes, "app.b.leaf", "listed children get implicit declarations")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, g.Nodes["app"].Children, "declared nodes join their parent")
	assert.Equal(t, "app.a", g.Nodes["app.c"].Protonym)

	l, err := tag.New(g)
	require.NoError(t, err)
	a := l.MustTag("app.a")
	assert.Contains(t, a.Children(), "leaf")
	assert.Same(t, a, l.MustTag("app.c"))
}

func TestParse_JSON(t *testing.T) {
	g, err := Parse([]byte(`{"roots": ["app"], "nodes": {"app.x": {"type": []}, "app.y": null}}`))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, g.Nodes["app"].Children)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"not yaml", "roots: [", errors.ErrParsingFailed},
		{"no roots", "nodes: {}", errors.ErrInvalidData},
		{"unknown field", "roots: [app]\nnodes:\n  app.x:\n    kind: leaf\n", errors.ErrInvalidData},
		{"bad id", "roots: [app]\nnodes:\n  'app..x': {}\n", errors.ErrInvalidData},
		{"undeclared type", "roots: [app]\nnodes:\n  app.x:\n    type: [app.y]\n", errors.ErrInvalidData},
		{"undeclared protonym", "roots: [app]\nnodes:\n  app.x:\n    protonym: app.y\n", errors.ErrInvalidData},
		{"missing parent", "roots: [app]\nnodes:\n  app.x.y: {}\n", errors.ErrInvalidData},
		{"stray top level", "roots: [app]\nnodes:\n  other: {}\n", errors.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoad(t *testing.T) {
	g, err := Load(filepath.Join("namespace", "blockchain.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"blockchain"}, g.Roots)

	_, err = Load(filepath.Join("namespace", "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"graphs/app.yaml": {Data: []byte("roots: [app]\nnodes:\n  app.x: {}\n")},
	}
	g, err := LoadFS(fsys, "graphs/app.yaml")
	require.NoError(t, err)
	assert.Contains(t, g.Nodes, "app.x")
}

func TestBlockchain(t *testing.T) {
	l, err := BlockchainLanguage()
	require.NoError(t, err)

	wallet := l.MustTag("blockchain.user.wallet")
	assert.True(t, wallet.IsCollection())
	assert.Contains(t, wallet.Children(), "id")

	enabled := l.MustTag("blockchain.app.configuration.apple.pay.is.enabled")
	assert.True(t, enabled.IsLeaf())
	assert.True(t, enabled.Is(l.MustTag("blockchain.db.type.boolean")))

	assert.Same(t, l.MustTag("blockchain.ux.asset.buy"), l.MustTag("blockchain.ux.asset.swap"))
	assert.False(t, l.MustTag("blockchain.user.email.address").IsLeaf(), "state values are not leaves")
}
