package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if result := test.class.String(); result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"not synchronized", ErrNotSynchronized, true},
		{"rate limited", ErrRateLimited, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"wrapped no connection", fmt.Errorf("fetch: %w", ErrNoConnection), true},
		{"not in language", ErrNotInLanguage, false},
		{"network in message", fmt.Errorf("network unreachable"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsTransient(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"not in language", ErrNotInLanguage, true},
		{"child not found", fmt.Errorf("lookup: %w", ErrChildNotFound), true},
		{"type mismatch", ErrTypeMismatch, true},
		{"missing indices", ErrMissingIndices, true},
		{"parsing failed", ErrParsingFailed, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsInvalid(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ErrInvalidGraph) {
		t.Error("invalid graph should be fatal")
	}
	if !IsFatal(fmt.Errorf("load: %w", ErrMissingConfig)) {
		t.Error("wrapped missing config should be fatal")
	}
	if IsFatal(ErrKeyDoesNotExist) {
		t.Error("missing key must not be fatal")
	}
	if IsFatal(nil) {
		t.Error("nil must not be fatal")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		expected ErrorClass
	}{
		{nil, ErrorTransient},
		{ErrConnectionLost, ErrorTransient},
		{ErrInvalidConfig, ErrorFatal},
		{ErrNotInLanguage, ErrorInvalid},
		{errors.New("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		if got := Classify(test.err); got != test.expected {
			t.Errorf("Classify(%v) = %v, want %v", test.err, got, test.expected)
		}
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "c", "m", "a") != nil {
		t.Fatal("wrapping nil should return nil")
	}

	err := Wrap(ErrKeyNotFound, "Overlay", "Get", "lookup")
	want := "Overlay.Get: lookup failed: key not found"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Error("wrapped error should match its cause")
	}
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.wrap(nil, "c", "m", "a") != nil {
				t.Fatal("wrapping nil should return nil")
			}

			err := test.wrap(ErrInvalidData, "schema", "Parse", "decode")

			var ce *ClassifiedError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassifiedError, got %T", err)
			}
			if ce.Class != test.class {
				t.Errorf("expected class %v, got %v", test.class, ce.Class)
			}
			if ce.Component != "schema" || ce.Operation != "Parse" {
				t.Errorf("unexpected context %s.%s", ce.Component, ce.Operation)
			}
			if !strings.HasPrefix(err.Error(), "schema.Parse: decode failed") {
				t.Errorf("unexpected message %q", err.Error())
			}
			if !errors.Is(err, ErrInvalidData) {
				t.Error("classified error should unwrap to its cause")
			}
			if Classify(err) != test.class {
				t.Errorf("Classify should honour explicit class %v", test.class)
			}
		})
	}
}

func TestClassifiedError_NoMessage(t *testing.T) {
	ce := &ClassifiedError{Class: ErrorInvalid, Err: ErrTypeMismatch}
	if ce.Error() != ErrTypeMismatch.Error() {
		t.Errorf("expected underlying message, got %q", ce.Error())
	}
}

func BenchmarkClassify(b *testing.B) {
	err := Wrap(ErrNotInLanguage, "Language", "Tag", "resolve")
	for i := 0; i < b.N; i++ {
		_ = Classify(err)
	}
}
