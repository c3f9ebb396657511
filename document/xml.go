package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// parseXML maps an XML document onto the neutral shape: an element becomes a
// mapping, attributes become "@name" keys, repeated child elements collapse
// into a sequence under their shared name, and text-only elements become
// strings under "#text" when siblings exist. The root mapping carries the
// root element name as its single key. All scalar leaves stay strings; XML
// carries no native typing to preserve.
func parseXML(data []byte) (*Node, *ParseError) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	li := newLineIndex(data)

	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err != nil {
			return nil, xmlError(err, li, dec)
		}
		if se, ok := tok.(xml.StartElement); ok {
			elem, perr := xmlElement(dec, li, se, start)
			if perr != nil {
				return nil, perr
			}
			root := &Node{
				Kind:  KindMapping,
				Pairs: []Pair{{Key: se.Name.Local, KeySpan: li.span(start, start+len(se.Name.Local)+1), Value: elem}},
				Span:  elem.Span,
			}
			return root, nil
		}
	}
}

func xmlElement(dec *xml.Decoder, li *lineIndex, se xml.StartElement, start int) (*Node, *ParseError) {
	type childGroup struct {
		name  string
		nodes []*Node
		span  Span
	}
	var groups []*childGroup
	byName := map[string]*childGroup{}
	var text strings.Builder

	addChild := func(name string, n *Node, keySpan Span) {
		g, ok := byName[name]
		if !ok {
			g = &childGroup{name: name, span: keySpan}
			byName[name] = g
			groups = append(groups, g)
		}
		g.nodes = append(g.nodes, n)
	}

	for {
		tokStart := int(dec.InputOffset())
		tok, err := dec.Token()
		if err != nil {
			return nil, xmlError(err, li, dec)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, perr := xmlElement(dec, li, t, tokStart)
			if perr != nil {
				return nil, perr
			}
			addChild(t.Name.Local, child, li.span(tokStart, tokStart+len(t.Name.Local)+1))
		case xml.CharData:
			text.Write(bytes.TrimSpace(t))
		case xml.EndElement:
			end := int(dec.InputOffset())
			span := li.span(start, end)
			content := text.String()
			if len(groups) == 0 && len(se.Attr) == 0 {
				return &Node{Kind: KindString, Str: content, Span: span}, nil
			}
			n := &Node{Kind: KindMapping, Span: span}
			for _, a := range se.Attr {
				n.Pairs = append(n.Pairs, Pair{
					Key:     "@" + a.Name.Local,
					KeySpan: li.span(start, start+len(se.Name.Local)+1),
					Value:   &Node{Kind: KindString, Str: a.Value, Span: li.span(start, start+len(se.Name.Local)+1)},
				})
			}
			for _, g := range groups {
				var v *Node
				if len(g.nodes) == 1 {
					v = g.nodes[0]
				} else {
					v = &Node{Kind: KindSequence, Items: g.nodes, Span: Span{Start: g.nodes[0].Span.Start, End: g.nodes[len(g.nodes)-1].Span.End}}
				}
				n.Pairs = append(n.Pairs, Pair{Key: g.name, KeySpan: g.span, Value: v})
			}
			if content != "" {
				n.Pairs = append(n.Pairs, Pair{Key: "#text", KeySpan: span, Value: &Node{Kind: KindString, Str: content, Span: span}})
			}
			return n, nil
		}
	}
}

func xmlError(err error, li *lineIndex, dec *xml.Decoder) *ParseError {
	if err == io.EOF {
		return &ParseError{Position: li.position(len(li.data)), Message: "unexpected end of input"}
	}
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		return &ParseError{Position: Position{Line: syn.Line - 1}, Message: syn.Msg}
	}
	return &ParseError{Position: li.position(int(dec.InputOffset())), Message: err.Error()}
}
