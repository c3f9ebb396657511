// Package session coordinates per-document validation runs. Each open
// document gets its own goroutine that debounces edits, runs the
// parse/resolve/validate pipeline, and publishes diagnostics, discarding any
// result that a newer edit has made stale.
package session

import (
	"fmt"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
)

// Diagnostic is a transport-neutral finding anchored to a source span.
// Servers translate it to their wire format.
type Diagnostic struct {
	Span     document.Span
	Severity schemawatch.Severity
	Code     string
	Message  string
	// Source carries the instance path the finding refers to, "/" for the
	// document root.
	Source string
}

// Publisher receives the full diagnostic set for a document version.
// Publishing an empty slice clears previously reported diagnostics.
type Publisher interface {
	Publish(uri string, version int32, diags []Diagnostic)
}

func pathDisplay(pointer string) string {
	if pointer == "" {
		return "/"
	}
	return pointer
}

// violationDiagnostic anchors a violation to its source span: the node's own
// span when the instance path still resolves, otherwise a textual search over
// the raw document.
func violationDiagnostic(v schemawatch.Violation, root *document.Node, raw []byte) Diagnostic {
	var span document.Span
	if n := root.Lookup(v.InstancePath); n != nil {
		span = n.Span
	} else {
		span = document.LocatePointer(raw, v.InstancePath)
	}
	return Diagnostic{
		Span:     span,
		Severity: v.Severity,
		Code:     v.Code,
		Message:  fmt.Sprintf("Path %s: %s", pathDisplay(v.InstancePath), v.Message),
		Source:   pathDisplay(v.InstancePath),
	}
}

func parseDiagnostic(perr *document.ParseError) Diagnostic {
	pos := perr.Position
	return Diagnostic{
		Span:     document.Span{Start: pos, End: document.Position{Line: pos.Line, Column: pos.Column + 1}},
		Severity: schemawatch.SeverityError,
		Code:     schemawatch.CodeParseError,
		Message:  fmt.Sprintf("Path /: %s", perr.Message),
		Source:   "/",
	}
}
