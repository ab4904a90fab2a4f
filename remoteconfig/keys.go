package remoteconfig

import (
	"strings"

	"github.com/DensusHere/mywallet-sub001/tag"
)

// OverrideMarker prefixes keys written by the local override layer.
const OverrideMarker = "!"

const (
	canonicalPrefix = "blockchain_app_configuration"
	legacyPrefix    = "ios_ff"
	isEnabled       = "_is_enabled"
	enabled         = "_enabled"
)

// KeyKind names the derivation that produced a candidate key.
type KeyKind string

// Candidate kinds in lookup priority order.
const (
	KindOverride       KeyKind = "override"
	KindCanonical      KeyKind = "canonical"
	KindLegacy         KeyKind = "legacy"
	KindLegacyStripped KeyKind = "legacy_stripped"
	KindLegacyEnabled  KeyKind = "legacy_enabled"
	KindDefault        KeyKind = "default"
)

// Candidate is one lookup key for a reference.
type Candidate struct {
	Key  string
	Kind KeyKind
}

// CanonicalKey flattens the reference path, with collection indices, into a
// remote key: "blockchain.app.configuration.asset[BTC].is.enabled" becomes
// "blockchain_app_configuration_asset[BTC]_is_enabled".
func CanonicalKey(ref tag.Reference) string {
	return flatten(ref.String())
}

// OverrideKey is the key an override for ref is stored under.
func OverrideKey(ref tag.Reference) string {
	canonical := CanonicalKey(ref)
	if canonical == "" {
		return ""
	}
	return OverrideMarker + canonical
}

// Candidates derives the lookup keys for ref in priority order. A key derived
// twice keeps its first position. The none tag has no candidates.
func Candidates(ref tag.Reference) []Candidate {
	canonical := CanonicalKey(ref)
	if canonical == "" {
		return nil
	}
	legacy := strings.Replace(canonical, canonicalPrefix, legacyPrefix, 1)

	all := []Candidate{
		{Key: OverrideMarker + canonical, Kind: KindOverride},
		{Key: canonical, Kind: KindCanonical},
		{Key: legacy, Kind: KindLegacy},
		{Key: strings.ReplaceAll(legacy, isEnabled, ""), Kind: KindLegacyStripped},
		{Key: strings.ReplaceAll(legacy, isEnabled, enabled), Kind: KindLegacyEnabled},
		{Key: flatten(ref.Tag().ID()), Kind: KindDefault},
	}

	seen := make(map[string]struct{}, len(all))
	out := all[:0]
	for _, c := range all {
		if c.Key == "" {
			continue
		}
		if _, dup := seen[c.Key]; dup {
			continue
		}
		seen[c.Key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func flatten(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}

func candidateKeys(cs []Candidate) []string {
	keys := make([]string, len(cs))
	for i, c := range cs {
		keys[i] = c.Key
	}
	return keys
}
