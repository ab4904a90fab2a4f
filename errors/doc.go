// Package errors provides standardized error handling for the wallet core packages.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input or a relationship that does not hold, non-retryable) and Fatal
// (unrecoverable, stop processing). The classification lets the remote
// configuration fetch loop decide what to retry and lets callers of the tag
// language tell a malformed id from an unavailable backend.
//
// # Sentinels
//
// Domain packages return typed errors that match a sentinel from this package:
//
//	tag, err := lang.Tag("blockchain.user.wallet")
//	if errors.Is(err, errors.ErrNotInLanguage) {
//	    // programmer error: the id is not declared in the graph
//	}
//
//	value, err := overlay.Get(ref)
//	switch {
//	case errors.Is(err, errors.ErrNotSynchronized):
//	    // wait for overlay.Synchronized()
//	case errors.Is(err, errors.ErrKeyDoesNotExist):
//	    // fall back to the baked-in default
//	}
//
// # Wrapping
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers attach a class while wrapping:
//
//	errors.WrapTransient(err, "Overlay", "fetch", "activate remote values")
//	errors.WrapInvalid(err, "schema", "Parse", "validate document")
//	errors.WrapFatal(err, "Language", "New", "resolve roots")
//
// Wrap() adds context without changing the class.
package errors
