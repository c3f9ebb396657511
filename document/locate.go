package document

import (
	"bytes"
	"strconv"

	schemawatch "github.com/schemawatch/schemawatch"
)

// PositionAt converts a byte offset into a zero-based position by counting
// newlines in the prefix.
func PositionAt(raw []byte, offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(raw) {
		offset = len(raw)
	}
	line := bytes.Count(raw[:offset], []byte{'\n'})
	col := offset
	if i := bytes.LastIndexByte(raw[:offset], '\n'); i >= 0 {
		col = offset - i - 1
	}
	return Position{Line: line, Column: col}
}

// LocatePointer finds an approximate span for a JSON Pointer by searching the
// raw text for each reference token in order, accumulating the match offsets.
// It is a best-effort anchor for dialects whose parser supplies no positions;
// an unmatched token leaves the cursor in place and the final span degrades to
// the line reached so far.
func LocatePointer(raw []byte, pointer string) Span {
	cursor := 0
	matchLen := 0
	for _, tok := range schemawatch.SplitPointer(pointer) {
		if tok == "" {
			continue
		}
		if idx := bytes.Index(raw[cursor:], []byte(tok)); idx >= 0 {
			cursor += idx
			matchLen = len(tok)
			cursor += matchLen
			continue
		}
	}
	start := cursor - matchLen
	if start < 0 {
		start = 0
	}
	return Span{Start: PositionAt(raw, start), End: PositionAt(raw, cursor)}
}

// annotateSpans walks the tree in document order and assigns spans by
// progressive text search. Used for dialects (TOML) whose decoder exposes no
// positions.
func annotateSpans(root *Node, raw []byte) {
	locateNode(root, raw, 0)
}

func locateNode(n *Node, raw []byte, cursor int) int {
	switch n.Kind {
	case KindMapping:
		// the container anchors where its first located key sits
		anchored := false
		for i := range n.Pairs {
			p := &n.Pairs[i]
			if idx := indexKey(raw, cursor, p.Key); idx >= 0 {
				p.KeySpan = Span{Start: PositionAt(raw, idx), End: PositionAt(raw, idx+len(p.Key))}
				cursor = idx + len(p.Key)
				if !anchored {
					n.Span.Start = p.KeySpan.Start
					anchored = true
				}
			} else {
				p.KeySpan = lineSpan(raw, cursor)
			}
			cursor = locateNode(p.Value, raw, cursor)
			n.Span.End = p.Value.Span.End
		}
		if len(n.Pairs) == 0 {
			n.Span = lineSpan(raw, cursor)
		}
		return cursor
	case KindSequence:
		n.Span.Start = PositionAt(raw, cursor)
		for _, item := range n.Items {
			cursor = locateNode(item, raw, cursor)
			n.Span.End = item.Span.End
		}
		if len(n.Items) == 0 {
			n.Span = lineSpan(raw, cursor)
		}
		return cursor
	default:
		lex := scalarLexeme(n)
		if lex != "" {
			if idx := bytes.Index(raw[cursor:], []byte(lex)); idx >= 0 {
				start := cursor + idx
				n.Span = Span{Start: PositionAt(raw, start), End: PositionAt(raw, start+len(lex))}
				return start + len(lex)
			}
		}
		n.Span = lineSpan(raw, cursor)
		return cursor
	}
}

// indexKey searches for a mapping key at or after cursor, preferring the bare
// form and falling back to the quoted form.
func indexKey(raw []byte, cursor int, key string) int {
	if idx := bytes.Index(raw[cursor:], []byte(key)); idx >= 0 {
		return cursor + idx
	}
	quoted := strconv.Quote(key)
	if idx := bytes.Index(raw[cursor:], []byte(quoted)); idx >= 0 {
		return cursor + idx + 1
	}
	return -1
}

func scalarLexeme(n *Node) string {
	switch n.Kind {
	case KindString:
		return n.Str
	case KindNumber:
		return n.Number
	case KindBool:
		return strconv.FormatBool(n.Bool)
	}
	return ""
}

// lineSpan anchors to the remainder of the line containing cursor.
func lineSpan(raw []byte, cursor int) Span {
	start := PositionAt(raw, cursor)
	end := cursor
	for end < len(raw) && raw[end] != '\n' {
		end++
	}
	return Span{Start: start, End: PositionAt(raw, end)}
}
