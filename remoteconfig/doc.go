// Package remoteconfig maps tag references onto a remote key/value
// configuration, with a local override layer that survives restarts.
//
// A reference resolves to a list of candidate keys, tried in order:
//
//	!blockchain_app_configuration_apple_pay_is_enabled   override
//	blockchain_app_configuration_apple_pay_is_enabled    canonical
//	ios_ff_apple_pay_is_enabled                          legacy
//	ios_ff_apple_pay                                     legacy, "_is_enabled" stripped
//	ios_ff_apple_pay_enabled                             legacy, "_is_enabled" as "_enabled"
//	blockchain_app_configuration_apple_pay_is_enabled    bare tag id, no indices
//
// Duplicates keep their first position. Override keys are only read from the
// override layer and the rest only from the remote layer.
//
// The Overlay runs one background fetch-and-activate task against a Source,
// retried with exponential backoff and full jitter until it succeeds. Reads
// fail with ErrNotSynchronized until then. Refresh replaces the in-flight
// task; a superseded task never activates its result.
//
// Values may embed experiments:
//
//	{"{returns}": {"experiment": {"tabs_v2": {"0": [...], "1": [...]}}}, "default": [...]}
//
// Get substitutes the branch for the assigned group, falling back to
// "default".
//
// KVSource and KVOverrideStore keep their data as single JSON documents in a
// JetStream KV bucket through natsclient.KVStore.
package remoteconfig
