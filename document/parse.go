package document

import (
	"fmt"

	schemawatch "github.com/schemawatch/schemawatch"
)

// ParseError reports a malformed document at a position. It is surfaced as a
// single diagnostic, never as a session-fatal condition.
type ParseError struct {
	Position Position
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Position.Line+1, e.Position.Column+1, e.Message)
}

// Parse builds the neutral tree for a known dialect. Every dialect converges
// on the same Node shape so downstream evaluation stays dialect-agnostic.
// DialectUnknown inputs are a caller error; the session skips them earlier.
func Parse(d schemawatch.Dialect, data []byte) (*Node, *ParseError) {
	switch d {
	case schemawatch.DialectJSON:
		return parseJSON(data)
	case schemawatch.DialectYAML:
		return parseYAML(data)
	case schemawatch.DialectTOML:
		return parseTOML(data)
	case schemawatch.DialectXML:
		return parseXML(data)
	default:
		return nil, &ParseError{Message: fmt.Sprintf("unsupported dialect %q", d)}
	}
}

// lineIndex converts byte offsets to zero-based line/column positions.
type lineIndex struct {
	data  []byte
	lines []int // byte offset of the start of each line
}

func newLineIndex(data []byte) *lineIndex {
	li := &lineIndex{data: data, lines: []int{0}}
	for i, b := range data {
		if b == '\n' {
			li.lines = append(li.lines, i+1)
		}
	}
	return li
}

func (li *lineIndex) position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.data) {
		offset = len(li.data)
	}
	// binary search for the containing line
	lo, hi := 0, len(li.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.lines[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return Position{Line: lo, Column: offset - li.lines[lo]}
}

func (li *lineIndex) span(start, end int) Span {
	return Span{Start: li.position(start), End: li.position(end)}
}
