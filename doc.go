// Package mywallet is the wallet's addressing core: a hierarchical tag
// language, parameterized references into it, and the remote configuration
// overlay keyed by those references.
//
// # Layout
//
// The packages form a small dependency chain, leaves first:
//
//	errors        classified errors (transient, invalid, fatal)
//	tag           Language, Tag, Context and Reference
//	tag/schema    graph definition loader and the bundled blockchain namespace
//	pkg/retry     backoff with jitter
//	pkg/cache     LRU cache with Prometheus statistics
//	metric        Prometheus registry and HTTP exposition
//	natsclient    NATS connection and JetStream key-value access
//	experiments   experiment assignment client and refresh service
//	remoteconfig  key derivation, fallback chain, overrides, fetch-and-activate
//	observer      identity-keyed set of lifecycle observers
//	session       composition of the language, the overlay and the observers
//	config        layered JSON configuration with environment overrides
//	cmd/tagctl    command line for resolving tags and reading configuration
//
// # Addressing
//
// A Tag is a node of a dot-path graph such as
// "blockchain.app.configuration.apple.pay.is.enabled". Binding collection
// ids yields a Reference, the key used everywhere else:
//
//	lang, _ := schema.BlockchainLanguage()
//	asset := lang.MustTag("blockchain.app.configuration.asset.id")
//	ref := lang.MustTag("blockchain.app.configuration.asset.is.enabled").
//		Key(tag.NewContext(tag.Bind(asset, "BTC")))
//	ref.String() // blockchain.app.configuration.asset[BTC].is.enabled
//
// # Remote configuration
//
// The overlay maps a Reference to a list of candidate keys (override,
// canonical, legacy variants, default) and returns the first value present.
// Values come from a Source, either a static document or a JSON document in
// a NATS key-value bucket, and local overrides persist through an
// OverrideStore. See package remoteconfig for the key table.
//
// # Running
//
//	tagctl resolve blockchain.user.name
//	tagctl get -c configs/local.json blockchain.app.configuration.tabs
//	tagctl serve -c configs/local.json
package mywallet
