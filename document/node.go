// Package document defines the dialect-neutral tree every parser converges on.
// Each node carries a source span so violations can be anchored back into the
// raw text regardless of the input dialect.
package document

import (
	"math"
	"strconv"
	"strings"

	schemawatch "github.com/schemawatch/schemawatch"
)

// Kind identifies a node value kind.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

// Position is a zero-based line/column location in the raw text.
type Position struct {
	Line   int
	Column int
}

// Span is a half-open [Start, End) region of the raw text.
type Span struct {
	Start Position
	End   Position
}

// Pair is one mapping entry. Pairs keep document order; keys are unique within
// a mapping (duplicates are rejected at parse time).
type Pair struct {
	Key     string
	KeySpan Span
	Value   *Node
}

// Node is a dialect-neutral value. Exactly one of the payload fields is
// meaningful, selected by Kind. Number keeps the lexical form so the
// integer/fractional distinction survives parsing.
type Node struct {
	Kind   Kind
	Bool   bool
	Number string
	Str    string
	Items  []*Node
	Pairs  []Pair
	Span   Span
}

// TypeName reports the node type in JSON Schema vocabulary. Integral numbers
// report "integer".
func (n *Node) TypeName() string {
	switch n.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		if n.IsInteger() {
			return "integer"
		}
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "array"
	case KindMapping:
		return "object"
	default:
		return "unknown"
	}
}

// Float returns the numeric value of a KindNumber node.
func (n *Node) Float() float64 {
	f, err := strconv.ParseFloat(n.Number, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// IsInteger reports whether a KindNumber node holds a mathematically integral
// value. 1.0 and 1e2 count as integers; 1.5 does not.
func (n *Node) IsInteger() bool {
	if n.Kind != KindNumber {
		return false
	}
	if !strings.ContainsAny(n.Number, ".eE") {
		return true
	}
	f := n.Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}

// Get returns the value for a mapping key, or nil.
func (n *Node) Get(key string) *Node {
	if n.Kind != KindMapping {
		return nil
	}
	for i := range n.Pairs {
		if n.Pairs[i].Key == key {
			return n.Pairs[i].Value
		}
	}
	return nil
}

// Lookup resolves a JSON Pointer from this node, returning nil when any
// segment is missing.
func (n *Node) Lookup(pointer string) *Node {
	cur := n
	for _, tok := range schemawatch.SplitPointer(pointer) {
		if cur == nil {
			return nil
		}
		switch cur.Kind {
		case KindMapping:
			cur = cur.Get(tok)
		case KindSequence:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(cur.Items) {
				return nil
			}
			cur = cur.Items[idx]
		default:
			return nil
		}
	}
	return cur
}

// Equal reports deep value equality, ignoring spans. Numbers compare
// numerically, so 1 and 1.0 are equal.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case KindNull:
		return true
	case KindBool:
		return n.Bool == other.Bool
	case KindNumber:
		return n.Number == other.Number || n.Float() == other.Float()
	case KindString:
		return n.Str == other.Str
	case KindSequence:
		if len(n.Items) != len(other.Items) {
			return false
		}
		for i := range n.Items {
			if !n.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(n.Pairs) != len(other.Pairs) {
			return false
		}
		for i := range n.Pairs {
			ov := other.Get(n.Pairs[i].Key)
			if ov == nil || !n.Pairs[i].Value.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Describe renders a short human-readable form of the value for messages.
// Containers render as their type name; scalars render their literal.
func (n *Node) Describe() string {
	switch n.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(n.Bool)
	case KindNumber:
		return n.Number
	case KindString:
		return strconv.Quote(n.Str)
	case KindSequence:
		return "array"
	case KindMapping:
		return "object"
	}
	return "unknown"
}
