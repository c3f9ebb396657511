package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"
)

// parseJSON walks the goccy/go-json token stream and builds the neutral tree.
// Token spans are recovered from Decoder.InputOffset: the offset before a
// token (past any separators) marks its start, the offset after marks its end.
func parseJSON(data []byte) (*Node, *ParseError) {
	p := &jsonParser{
		dec: j.NewDecoder(bytes.NewReader(data)),
		li:  newLineIndex(data),
	}
	p.dec.UseNumber()

	tok, start, err := p.next()
	if err != nil {
		return nil, p.parseError(err)
	}
	root, perr := p.value(tok, start)
	if perr != nil {
		return nil, perr
	}
	// trailing garbage after the document is a parse error
	if _, _, err := p.next(); err != io.EOF {
		if err != nil {
			return nil, p.parseError(err)
		}
		return nil, &ParseError{
			Position: p.li.position(int(p.dec.InputOffset())),
			Message:  "unexpected content after top-level value",
		}
	}
	return root, nil
}

type jsonParser struct {
	dec *j.Decoder
	li  *lineIndex
}

// next reads one token and returns it with the byte offset of its first
// character.
func (p *jsonParser) next() (j.Token, int, error) {
	before := int(p.dec.InputOffset())
	tok, err := p.dec.Token()
	if err != nil {
		return nil, before, err
	}
	return tok, p.skipSeparators(before), nil
}

// skipSeparators advances past whitespace and structural separators between
// the previous token and the next one.
func (p *jsonParser) skipSeparators(off int) int {
	for off < len(p.li.data) {
		switch p.li.data[off] {
		case ' ', '\t', '\r', '\n', ',', ':':
			off++
		default:
			return off
		}
	}
	return off
}

func (p *jsonParser) value(tok j.Token, start int) (*Node, *ParseError) {
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			return p.object(start)
		case '[':
			return p.array(start)
		}
		return nil, &ParseError{Position: p.li.position(start), Message: fmt.Sprintf("unexpected delimiter %q", v.String())}
	case string:
		return &Node{Kind: KindString, Str: v, Span: p.spanFrom(start)}, nil
	case j.Number:
		return &Node{Kind: KindNumber, Number: string(v), Span: p.spanFrom(start)}, nil
	case float64:
		return &Node{Kind: KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Span: p.spanFrom(start)}, nil
	case bool:
		return &Node{Kind: KindBool, Bool: v, Span: p.spanFrom(start)}, nil
	case nil:
		return &Node{Kind: KindNull, Span: p.spanFrom(start)}, nil
	}
	return nil, &ParseError{Position: p.li.position(start), Message: "unexpected token"}
}

func (p *jsonParser) object(start int) (*Node, *ParseError) {
	n := &Node{Kind: KindMapping}
	seen := map[string]struct{}{}
	for {
		tok, tokStart, err := p.next()
		if err != nil {
			return nil, p.parseError(err)
		}
		if d, ok := tok.(j.Delim); ok && d == '}' {
			n.Span = p.li.span(start, int(p.dec.InputOffset()))
			return n, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, &ParseError{Position: p.li.position(tokStart), Message: "expected object key"}
		}
		keySpan := p.spanFrom(tokStart)
		if _, dup := seen[key]; dup {
			return nil, &ParseError{Position: keySpan.Start, Message: fmt.Sprintf("duplicate key %q", key)}
		}
		seen[key] = struct{}{}

		vtok, vstart, err := p.next()
		if err != nil {
			return nil, p.parseError(err)
		}
		val, perr := p.value(vtok, vstart)
		if perr != nil {
			return nil, perr
		}
		n.Pairs = append(n.Pairs, Pair{Key: key, KeySpan: keySpan, Value: val})
	}
}

func (p *jsonParser) array(start int) (*Node, *ParseError) {
	n := &Node{Kind: KindSequence}
	for {
		tok, tokStart, err := p.next()
		if err != nil {
			return nil, p.parseError(err)
		}
		if d, ok := tok.(j.Delim); ok && d == ']' {
			n.Span = p.li.span(start, int(p.dec.InputOffset()))
			return n, nil
		}
		item, perr := p.value(tok, tokStart)
		if perr != nil {
			return nil, perr
		}
		n.Items = append(n.Items, item)
	}
}

func (p *jsonParser) spanFrom(start int) Span {
	return p.li.span(start, int(p.dec.InputOffset()))
}

func (p *jsonParser) parseError(err error) *ParseError {
	if err == io.EOF {
		return &ParseError{Position: p.li.position(len(p.li.data)), Message: "unexpected end of input"}
	}
	var syn *j.SyntaxError
	if errors.As(err, &syn) {
		return &ParseError{Position: p.li.position(int(syn.Offset)), Message: syn.Error()}
	}
	return &ParseError{Position: p.li.position(int(p.dec.InputOffset())), Message: err.Error()}
}
