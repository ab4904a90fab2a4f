package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DensusHere/mywallet-sub001/errors"
)

func TestContext_MergeIsRightBiased(t *testing.T) {
	l := newWalletLanguage(t)
	walletID := l.MustTag("blockchain.user.wallet.id")
	accountID := l.MustTag("blockchain.ux.asset.account.id")

	a := NewContext(Bind(walletID, "w1"), Bind(accountID, "savings"))
	b := NewContext(Bind(walletID, "w2"))

	merged := a.Merge(b)
	v, ok := merged.Get(walletID)
	require.True(t, ok)
	assert.Equal(t, "w2", v)
	v, ok = merged.Get(accountID)
	require.True(t, ok)
	assert.Equal(t, "savings", v)
	assert.Equal(t, 2, merged.Len())

	// Inputs are untouched.
	v, _ = a.Get(walletID)
	assert.Equal(t, "w1", v)

	assert.True(t, a.Merge(Context{}).Equal(a))
	assert.True(t, Context{}.Merge(a).Equal(a))
}

func TestContext_EqualityIsOrderIndependent(t *testing.T) {
	l := newWalletLanguage(t)
	walletID := l.MustTag("blockchain.user.wallet.id")
	assetID := l.MustTag("blockchain.ux.asset.id")

	a := NewContext(Bind(walletID, 1), Bind(assetID, "BTC"))
	b := NewContext(Bind(assetID, "BTC"), Bind(walletID, 1))
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, `{blockchain.user.wallet.id="1", blockchain.ux.asset.id="BTC"}`, a.String())

	c := a.With(assetID, "ETH")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(NewContext(Bind(walletID, 1))))

	bindings := a.Bindings()
	require.Len(t, bindings, 2)
	assert.Equal(t, "blockchain.user.wallet.id", bindings[0].Key.ID())
	assert.Equal(t, "blockchain.ux.asset.id", bindings[1].Key.ID())
}

func TestContextOf(t *testing.T) {
	l := newWalletLanguage(t)
	walletID := l.MustTag("blockchain.user.wallet.id")

	ctx := ContextOf(map[*Tag]any{walletID: "w1"})
	assert.True(t, ctx.Equal(NewContext(Bind(walletID, "w1"))))
	assert.True(t, Context{}.IsEmpty())
	assert.Equal(t, "", Context{}.String())
}

func TestReference_KeyMerges(t *testing.T) {
	l := newWalletLanguage(t)
	balance := l.MustTag("blockchain.user.wallet.balance")
	walletID := l.MustTag("blockchain.user.wallet.id")

	ref := balance.Key(NewContext(Bind(walletID, "w1")))
	assert.Same(t, balance, ref.Tag())

	rebound := ref.Key(NewContext(Bind(walletID, "w2")))
	v, _ := rebound.Context().Get(walletID)
	assert.Equal(t, "w2", v, "new bindings win")
	v, _ = ref.Context().Get(walletID)
	assert.Equal(t, "w1", v, "references are values")
}

func TestReference_Equality(t *testing.T) {
	l := newWalletLanguage(t)
	balance := l.MustTag("blockchain.user.wallet.balance")
	walletID := l.MustTag("blockchain.user.wallet.id")
	assetID := l.MustTag("blockchain.ux.asset.id")

	a := balance.Key(NewContext(Bind(walletID, "w1"), Bind(assetID, "BTC")))
	b := balance.Key(NewContext(Bind(assetID, "BTC")), NewContext(Bind(walletID, "w1")))
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.ID(), b.ID())

	seen := map[string]bool{a.ID(): true}
	assert.True(t, seen[b.ID()], "ID is usable as a map key")

	other := balance.Key(NewContext(Bind(walletID, "w2")))
	assert.False(t, a.Equal(other))
	assert.NotEqual(t, a.ID(), other.ID())

	assert.False(t, balance.Key().Equal(l.MustTag("blockchain.user.name").Key()))
	assert.Equal(t, "blockchain.user.wallet.balance", balance.Key().ID())
}

func TestReference_String(t *testing.T) {
	l := newWalletLanguage(t)
	walletID := l.MustTag("blockchain.user.wallet.id")

	balance := l.MustTag("blockchain.user.wallet.balance")
	assert.Equal(t, "blockchain.user.wallet.balance", balance.Key().String())
	assert.Equal(t, "blockchain.user.wallet[42].balance",
		balance.Key(NewContext(Bind(walletID, 42))).String())

	sheet := l.MustTag("blockchain.ux.asset.account.sheet")
	ctx := ContextOf(map[*Tag]any{
		l.MustTag("blockchain.ux.asset.id"):         "BTC",
		l.MustTag("blockchain.ux.asset.account.id"): "savings",
	})
	ref := sheet.Key(ctx)
	assert.Equal(t, "blockchain.ux.asset[BTC].account[savings].sheet", ref.String())

	indices := ref.Indices()
	require.Len(t, indices, 2)
	assert.Equal(t, "blockchain.ux.asset", indices[0].Collection.ID())
	assert.Equal(t, "BTC", indices[0].Value)
	assert.Equal(t, "blockchain.ux.asset.account", indices[1].Collection.ID())

	assert.Equal(t, "", l.None().Key().String())
}

func TestReference_Validated(t *testing.T) {
	l := newWalletLanguage(t)
	sheet := l.MustTag("blockchain.ux.asset.account.sheet")
	assetID := l.MustTag("blockchain.ux.asset.id")

	_, err := sheet.Key(NewContext(Bind(assetID, "BTC"))).Validated()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingIndices)

	var missing *MissingIndicesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"blockchain.ux.asset.account.id"}, missing.Missing)

	full := sheet.Key(NewContext(Bind(assetID, "BTC"), Bind(l.MustTag("blockchain.ux.asset.account.id"), "a")))
	got, err := full.Validated()
	require.NoError(t, err)
	assert.True(t, got.Equal(full))

	// The collection itself needs no index of its own.
	_, err = l.MustTag("blockchain.ux.asset").Key().Validated()
	assert.NoError(t, err)
}

func TestReference_IDSeparatorsInValues(t *testing.T) {
	l := newWalletLanguage(t)
	sheet := l.MustTag("blockchain.ux.asset.account.sheet")
	accountID := l.MustTag("blockchain.ux.asset.account.id")
	assetID := l.MustTag("blockchain.ux.asset.id")

	crafted := sheet.Key(NewContext(Bind(accountID, "2, blockchain.ux.asset.id=1")))
	plain := sheet.Key(NewContext(Bind(assetID, 1), Bind(accountID, 2)))
	require.False(t, crafted.Equal(plain))
	assert.NotEqual(t, crafted.ID(), plain.ID())

	quoted := sheet.Key(NewContext(Bind(accountID, `2", blockchain.ux.asset.id="1`)))
	assert.NotEqual(t, quoted.ID(), plain.ID())
	assert.NotEqual(t, quoted.ID(), crafted.ID())
}
