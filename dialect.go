package schemawatch

import (
	"bytes"
	"path"
	"strings"
)

// Dialect identifies the structural configuration format of a document.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectJSON
	DialectYAML
	DialectTOML
	DialectXML
)

func (d Dialect) String() string {
	switch d {
	case DialectJSON:
		return "json"
	case DialectYAML:
		return "yaml"
	case DialectTOML:
		return "toml"
	case DialectXML:
		return "xml"
	default:
		return "unknown"
	}
}

// DialectHint carries the signals available when classifying a document. All
// fields are optional; DetectDialect weighs whatever is present.
type DialectHint struct {
	LanguageID string // explicit tag from the editor client; always wins when recognized
	Path       string // file path or URI, consulted for its extension
	Content    []byte // raw bytes, sniffed as a last resort
}

var dialectByLanguageID = map[string]Dialect{
	"json":  DialectJSON,
	"jsonc": DialectJSON,
	"yaml":  DialectYAML,
	"toml":  DialectTOML,
	"xml":   DialectXML,
}

var dialectByExtension = map[string]Dialect{
	".json": DialectJSON,
	".yaml": DialectYAML,
	".yml":  DialectYAML,
	".toml": DialectTOML,
	".xml":  DialectXML,
}

// DetectDialect classifies a document. Policy: an explicit language tag wins;
// otherwise the file extension is consulted; otherwise the content is sniffed.
// It returns DialectUnknown rather than guessing when no signal is conclusive.
func DetectDialect(hint DialectHint) Dialect {
	if d, ok := dialectByLanguageID[strings.ToLower(hint.LanguageID)]; ok {
		return d
	}
	if hint.Path != "" {
		ext := strings.ToLower(path.Ext(strings.TrimSuffix(hint.Path, "/")))
		if d, ok := dialectByExtension[ext]; ok {
			return d
		}
	}
	return sniffDialect(hint.Content)
}

// sniffDialect inspects the first non-blank byte of the content. Only shapes
// that are unambiguous in practice are claimed; YAML and TOML have no reliable
// leading signature and stay Unknown.
func sniffDialect(content []byte) Dialect {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if len(trimmed) == 0 {
		return DialectUnknown
	}
	switch trimmed[0] {
	case '{', '[':
		return DialectJSON
	case '<':
		return DialectXML
	}
	return DialectUnknown
}
