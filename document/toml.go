package document

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// parseTOML decodes via BurntSushi/toml and rebuilds the neutral tree.
// MetaData.Keys preserves document order, which the decoded maps lose; spans
// are recovered afterwards by textual location since the decoder exposes no
// positions.
func parseTOML(data []byte) (*Node, *ParseError) {
	var v map[string]any
	md, err := toml.Decode(string(data), &v)
	if err != nil {
		var perr toml.ParseError
		if errors.As(err, &perr) {
			// toml.Position carries a byte offset, not a column
			msg := perr.Message
			if msg == "" {
				msg = perr.Error()
			}
			return nil, &ParseError{
				Position: PositionAt(data, perr.Position.Start),
				Message:  msg,
			}
		}
		return nil, &ParseError{Message: err.Error()}
	}

	order := keyOrder(md.Keys())
	root := tomlValue(v, nil, order)
	annotateSpans(root, data)
	return root, nil
}

// keyOrder maps a dotted parent path to its child key names in document order.
func keyOrder(keys []toml.Key) map[string][]string {
	order := map[string][]string{}
	seen := map[string]struct{}{}
	for _, k := range keys {
		for i := range k {
			parent := joinPath(k[:i])
			full := joinPath(k[:i+1])
			if _, ok := seen[full]; ok {
				continue
			}
			seen[full] = struct{}{}
			order[parent] = append(order[parent], k[i])
		}
	}
	return order
}

func joinPath(parts []string) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "\x00"
		}
		s += p
	}
	return s
}

func tomlValue(v any, path []string, order map[string][]string) *Node {
	switch t := v.(type) {
	case map[string]any:
		n := &Node{Kind: KindMapping}
		keys := order[joinPath(path)]
		// keys absent from the metadata (inline table members) come sorted so
		// output order stays deterministic
		extra := make([]string, 0)
		known := map[string]struct{}{}
		for _, k := range keys {
			known[k] = struct{}{}
		}
		for k := range t {
			if _, ok := known[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range append(keys, extra...) {
			val, ok := t[k]
			if !ok {
				continue
			}
			n.Pairs = append(n.Pairs, Pair{Key: k, Value: tomlValue(val, append(path, k), order)})
		}
		return n
	case []map[string]any:
		n := &Node{Kind: KindSequence}
		for _, item := range t {
			n.Items = append(n.Items, tomlValue(item, path, order))
		}
		return n
	case []any:
		n := &Node{Kind: KindSequence}
		for _, item := range t {
			n.Items = append(n.Items, tomlValue(item, path, order))
		}
		return n
	case bool:
		return &Node{Kind: KindBool, Bool: t}
	case int64:
		return &Node{Kind: KindNumber, Number: strconv.FormatInt(t, 10)}
	case float64:
		return &Node{Kind: KindNumber, Number: strconv.FormatFloat(t, 'g', -1, 64)}
	case string:
		return &Node{Kind: KindString, Str: t}
	case time.Time:
		return &Node{Kind: KindString, Str: t.Format(time.RFC3339)}
	case toml.Primitive:
		return &Node{Kind: KindNull}
	default:
		return &Node{Kind: KindString, Str: fmt.Sprintf("%v", t)}
	}
}
