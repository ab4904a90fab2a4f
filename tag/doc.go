// Package tag implements the dot-path namespace shared by the wallet features.
//
// A Language is built from a Graph of node declarations. Each declaration
// names its children, its supertags (Type) and optionally a protonym that
// makes it a synonym of another node:
//
//	g := tag.NewGraph("blockchain")
//	g.MustDeclare(tag.Definition{ID: "blockchain.db"})
//	g.MustDeclare(tag.Definition{ID: "blockchain.db.collection", Children: []string{"id"}})
//	g.MustDeclare(tag.Definition{ID: "blockchain.user"})
//	g.MustDeclare(tag.Definition{ID: "blockchain.user.wallet", Type: []string{"blockchain.db.collection"}})
//	lang := tag.MustNew(g)
//
// A node that is-a supertag exposes the supertag's children under its own
// namespace, so the wallet above has an "id" child:
//
//	id := lang.MustTag("blockchain.user.wallet.id")
//
// # Resolution
//
// Tags are created lazily on first lookup and cached; one id always yields
// the same *Tag. Every derived property (children, type closure, lineage,
// leaf and collection classification) is computed once and memoized. The
// first resolution of a synonym id repoints its cache slot to the protonym,
// so later lookups of either id return the canonical tag.
//
// Cyclic supertag declarations terminate: the type closure is a visited-set
// walk and a cycle met while computing children falls back to the node's own
// children.
//
// # References
//
// A Reference parameterizes a tag with a Context of bindings, usually the
// index of each collection on the path:
//
//	ref := lang.MustTag("blockchain.user.wallet.balance").Key(
//	    tag.NewContext(tag.Bind(id, 42)),
//	)
//	ref.String() // blockchain.user.wallet[42].balance
//
// References are values; use ID as a map key.
//
// # Concurrency
//
// A Language and its Tags are safe for concurrent use. One mutex per
// Language serializes cache access and memo computation.
package tag
