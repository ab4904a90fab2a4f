package remoteconfig

import (
	"fmt"
	"strings"

	"github.com/DensusHere/mywallet-sub001/errors"
)

// KeyDoesNotExistError reports a reference with no value under any candidate key.
type KeyDoesNotExistError struct {
	Reference string
	Keys      []string
}

func (e *KeyDoesNotExistError) Error() string {
	return fmt.Sprintf("%s: %v (tried %s)", e.Reference, errors.ErrKeyDoesNotExist, strings.Join(e.Keys, ", "))
}

func (e *KeyDoesNotExistError) Unwrap() error { return errors.ErrKeyDoesNotExist }

// ErrorKind classifies a failed Result.
type ErrorKind string

// Result error kinds.
const (
	KindNotSynchronized ErrorKind = "not_synchronized"
	KindKeyDoesNotExist ErrorKind = "key_does_not_exist"
	KindOther           ErrorKind = "other"
)

// ResultError is the error half of a Result. Metadata carries the reference
// and, for missing keys, the candidates tried.
type ResultError struct {
	Kind     ErrorKind
	Metadata map[string]any
	Err      error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ResultError) Unwrap() error { return e.Err }

// Result is the value-or-error outcome of a lookup.
type Result struct {
	Value any
	Err   *ResultError
}

// OK reports whether the lookup produced a value.
func (r Result) OK() bool { return r.Err == nil }

func resultOf(ref string, value any, err error) Result {
	if err == nil {
		return Result{Value: value}
	}
	re := &ResultError{Kind: KindOther, Metadata: map[string]any{"reference": ref}, Err: err}
	var missing *KeyDoesNotExistError
	switch {
	case errors.Is(err, errors.ErrNotSynchronized):
		re.Kind = KindNotSynchronized
	case errors.As(err, &missing):
		re.Kind = KindKeyDoesNotExist
		re.Metadata["keys"] = missing.Keys
	}
	return Result{Err: re}
}
