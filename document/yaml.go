package document

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

var yamlLineRe = regexp.MustCompile(`(?:^|\s)line (\d+):`)

// parseYAML builds the neutral tree from the yaml.v3 node API, which carries
// 1-based line/column positions on every node.
func parseYAML(data []byte) (*Node, *ParseError) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		pos := Position{}
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			if line, aerr := strconv.Atoi(m[1]); aerr == nil && line > 0 {
				pos.Line = line - 1
			}
		}
		return nil, &ParseError{Position: pos, Message: err.Error()}
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		// empty document
		return &Node{Kind: KindNull}, nil
	}
	return yamlNode(root.Content[0])
}

func yamlNode(n *yaml.Node) (*Node, *ParseError) {
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, &ParseError{Position: yamlPos(n), Message: fmt.Sprintf("unresolved alias %q", n.Value)}
		}
		resolved, perr := yamlNode(n.Alias)
		if perr != nil {
			return nil, perr
		}
		// anchor the alias use site, not the anchor definition
		resolved.Span = yamlSpan(n)
		return resolved, nil
	case yaml.MappingNode:
		out := &Node{Kind: KindMapping, Span: yamlSpan(n)}
		seen := map[string]struct{}{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			key := k.Value
			if _, dup := seen[key]; dup {
				return nil, &ParseError{Position: yamlPos(k), Message: fmt.Sprintf("duplicate key %q", key)}
			}
			seen[key] = struct{}{}
			val, perr := yamlNode(v)
			if perr != nil {
				return nil, perr
			}
			out.Pairs = append(out.Pairs, Pair{Key: key, KeySpan: yamlSpan(k), Value: val})
			if end := val.Span.End; yamlAfter(end, out.Span.End) {
				out.Span.End = end
			}
		}
		return out, nil
	case yaml.SequenceNode:
		out := &Node{Kind: KindSequence, Span: yamlSpan(n)}
		for _, c := range n.Content {
			item, perr := yamlNode(c)
			if perr != nil {
				return nil, perr
			}
			out.Items = append(out.Items, item)
			if end := item.Span.End; yamlAfter(end, out.Span.End) {
				out.Span.End = end
			}
		}
		return out, nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	default:
		return nil, &ParseError{Position: yamlPos(n), Message: fmt.Sprintf("unsupported yaml node kind %d", n.Kind)}
	}
}

func yamlScalar(n *yaml.Node) (*Node, *ParseError) {
	span := yamlSpan(n)
	switch n.Tag {
	case "!!null", "":
		return &Node{Kind: KindNull, Span: span}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, &ParseError{Position: span.Start, Message: err.Error()}
		}
		return &Node{Kind: KindBool, Bool: b, Span: span}, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, &ParseError{Position: span.Start, Message: err.Error()}
		}
		return &Node{Kind: KindNumber, Number: strconv.FormatInt(i, 10), Span: span}, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, &ParseError{Position: span.Start, Message: err.Error()}
		}
		return &Node{Kind: KindNumber, Number: strconv.FormatFloat(f, 'g', -1, 64), Span: span}, nil
	default:
		// !!str, !!timestamp, custom tags: keep the lexical form
		return &Node{Kind: KindString, Str: n.Value, Span: span}, nil
	}
}

func yamlPos(n *yaml.Node) Position {
	return Position{Line: n.Line - 1, Column: n.Column - 1}
}

// yamlSpan approximates the end column from the scalar lexeme; container ends
// are widened to their last child by the callers.
func yamlSpan(n *yaml.Node) Span {
	start := yamlPos(n)
	end := start
	if n.Kind == yaml.ScalarNode || n.Kind == yaml.AliasNode {
		end.Column += len(n.Value)
	}
	return Span{Start: start, End: end}
}

func yamlAfter(a, b Position) bool {
	if a.Line != b.Line {
		return a.Line > b.Line
	}
	return a.Column > b.Column
}
