package tag

import (
	"fmt"
	"strings"

	"github.com/DensusHere/mywallet-sub001/errors"
)

// NotInLanguageError is returned when an id cannot be resolved.
type NotInLanguageError struct {
	ID       string
	Language string
}

func (e *NotInLanguageError) Error() string {
	return fmt.Sprintf("%q %s %s", e.ID, errors.ErrNotInLanguage, e.Language)
}

func (e *NotInLanguageError) Unwrap() error { return errors.ErrNotInLanguage }

// ChildNotFoundError lists the children that do exist.
type ChildNotFoundError struct {
	Parent    string
	Name      string
	Available []string
}

func (e *ChildNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q under %s, available: [%s]",
		errors.ErrChildNotFound, e.Name, e.Parent, strings.Join(e.Available, ", "))
}

func (e *ChildNotFoundError) Unwrap() error { return errors.ErrChildNotFound }

// TypeMismatchError is returned by As when a tag is not of the requested type.
type TypeMismatchError struct {
	ID   string
	Type string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s %s %s", e.ID, errors.ErrTypeMismatch, e.Type)
}

func (e *TypeMismatchError) Unwrap() error { return errors.ErrTypeMismatch }

// NotAncestorError is returned by Ancestor when the id is not in the lineage.
type NotAncestorError struct {
	ID       string
	Ancestor string
}

func (e *NotAncestorError) Error() string {
	return fmt.Sprintf("%s is %s of %s", e.Ancestor, errors.ErrNotAncestor, e.ID)
}

func (e *NotAncestorError) Unwrap() error { return errors.ErrNotAncestor }

// MissingIndicesError names the collections of a reference without a bound index.
type MissingIndicesError struct {
	ID      string
	Missing []string
}

func (e *MissingIndicesError) Error() string {
	return fmt.Sprintf("%s: %s requires [%s]", errors.ErrMissingIndices, e.ID, strings.Join(e.Missing, ", "))
}

func (e *MissingIndicesError) Unwrap() error { return errors.ErrMissingIndices }
