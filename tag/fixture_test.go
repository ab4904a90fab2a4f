package tag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// walletGraph is a reduced version of the production namespace.
func walletGraph() *Graph {
	g := NewGraph("blockchain")
	for _, def := range []Definition{
		{ID: "blockchain.db"},
		{ID: "blockchain.db.collection", Children: []string{"id"}},
		{ID: "blockchain.db.leaf"},
		{ID: "blockchain.db.type"},
		{ID: "blockchain.db.type.boolean", Type: []string{"blockchain.db.leaf"}},
		{ID: "blockchain.db.type.string", Type: []string{"blockchain.db.leaf"}},
		{ID: "blockchain.session"},
		{ID: "blockchain.session.state"},
		{ID: "blockchain.session.state.value"},
		{ID: "blockchain.user"},
		{ID: "blockchain.user.name", Type: []string{"blockchain.db.type.string"}},
		{ID: "blockchain.user.wallet", Type: []string{"blockchain.db.collection"}},
		{ID: "blockchain.user.wallet.balance"},
		{ID: "blockchain.user.wallet.address", Type: []string{"blockchain.db.type.string", "blockchain.session.state.value"}},
		{ID: "blockchain.user.wallet.preferences", Type: []string{"blockchain.db.leaf"}},
		{ID: "blockchain.user.wallet.preferences.currency"},
		{ID: "blockchain.ux"},
		{ID: "blockchain.ux.asset", Type: []string{"blockchain.db.collection"}},
		{ID: "blockchain.ux.asset.account", Type: []string{"blockchain.db.collection"}},
		{ID: "blockchain.ux.asset.account.sheet"},
		{ID: "blockchain.ux.button"},
		{ID: "blockchain.ux.button.tap"},
		{ID: "blockchain.ux.buy", Type: []string{"blockchain.ux.button"}},
		{ID: "blockchain.ux.swap", Protonym: "blockchain.ux.buy"},
	} {
		g.MustDeclare(def)
	}
	return g
}

func newWalletLanguage(t *testing.T, opts ...Option) *Language {
	t.Helper()
	l, err := New(walletGraph(), opts...)
	require.NoError(t, err)
	return l
}
