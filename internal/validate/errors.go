package validate

import "fmt"

// ErrorKind classifies validation failures.
type ErrorKind int

// Validation failure kinds.
const (
	// KindMalformedJSON indicates the raw payload is not valid JSON.
	KindMalformedJSON ErrorKind = iota

	// KindTypeMismatch indicates a key's value does not match its
	// template.
	KindTypeMismatch

	// KindMissingKey indicates a mandatory template key is absent.
	KindMissingKey

	// KindInternal indicates the defensive success-count invariant was
	// violated. Not reachable by crafted input.
	KindInternal
)

// String returns the kind's wire name.
func (k ErrorKind) String() string {
	switch k {
	case KindMalformedJSON:
		return "malformed_json"
	case KindTypeMismatch:
		return "type_mismatch"
	case KindMissingKey:
		return "missing_key"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a payload validation failure. Key names the offending field
// where one exists.
type Error struct {
	Kind ErrorKind
	Key  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindMalformedJSON:
		return "invalid JSON format"
	case KindMissingKey:
		return fmt.Sprintf("missing key %s", e.Key)
	case KindTypeMismatch:
		return fmt.Sprintf("key %s: type validation failure", e.Key)
	case KindInternal:
		return "success counter double check failure"
	default:
		return "validation failure"
	}
}

// newTypeError creates a type-mismatch error for a key.
func newTypeError(key string) *Error {
	return &Error{Kind: KindTypeMismatch, Key: key}
}

// newMissingKeyError creates a missing-key error.
func newMissingKeyError(key string) *Error {
	return &Error{Kind: KindMissingKey, Key: key}
}
