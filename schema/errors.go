// Package schema compiles schema documents into an evaluable graph, caches
// them by location, resolves which schema governs a document, and evaluates
// document trees into ordered violation lists.
package schema

import "fmt"

// ErrorKind classifies schema-side failures.
type ErrorKind int

const (
	// ErrNotFound: the schema location could not be loaded.
	ErrNotFound ErrorKind = iota
	// ErrParseFailure: the schema document itself is malformed.
	ErrParseFailure
	// ErrRecursionLimit: evaluation revisited a reference cycle without
	// consuming input.
	ErrRecursionLimit
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "not_found"
	case ErrParseFailure:
		return "parse_failure"
	case ErrRecursionLimit:
		return "recursion_limit"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

// Error reports a failure to load, parse, or evaluate a schema. Unsupported
// keywords are deliberately not errors; they are recorded as Entry warnings
// and behave as pass-through checks.
type Error struct {
	Kind     ErrorKind
	Location string
	Detail   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema %s: %s: %s", e.Location, e.Kind, e.Detail)
}
