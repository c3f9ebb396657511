package schema

import (
	"fmt"
	"regexp"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
)

// annotationKeywords are recognized but carry no checks. They never produce an
// unsupported-keyword warning.
var annotationKeywords = map[string]struct{}{
	"$schema": {}, "$id": {}, "id": {}, "$comment": {},
	"title": {}, "description": {}, "default": {}, "examples": {},
	"deprecated": {}, "readOnly": {}, "writeOnly": {},
	"definitions": {}, "$defs": {},
}

type compiler struct {
	location string
	warnings []string
	refs     map[string]struct{}
}

// compileNode turns one schema document node into a compiled Schema. Unknown
// or malformed keywords degrade to a recorded warning and pass-through
// behavior rather than failing the compile; schema evolution must not break
// older engines.
func (c *compiler) compileNode(n *document.Node, path string) *Schema {
	s := &Schema{location: c.location, path: path}

	switch n.Kind {
	case document.KindBool:
		b := n.Bool
		s.boolean = &b
		return s
	case document.KindMapping:
		// fall through to keyword compilation
	default:
		c.warnf(path, "schema is %s, expected object or boolean", n.TypeName())
		t := true
		s.boolean = &t
		return s
	}

	for _, p := range n.Pairs {
		kpath := schemawatch.PointerKey(path, p.Key)
		switch p.Key {
		case "type":
			s.types = c.stringOrStrings(p.Value, kpath)
		case "enum":
			if p.Value.Kind == document.KindSequence {
				s.enum = p.Value.Items
			} else {
				c.warnf(kpath, "enum must be an array")
			}
		case "const":
			s.konst = p.Value
		case "minimum":
			s.minimum = c.number(p.Value, kpath)
		case "maximum":
			s.maximum = c.number(p.Value, kpath)
		case "exclusiveMinimum":
			s.exclMin = c.number(p.Value, kpath)
		case "exclusiveMaximum":
			s.exclMax = c.number(p.Value, kpath)
		case "multipleOf":
			s.multipleOf = c.number(p.Value, kpath)
		case "minLength":
			s.minLength = c.integer(p.Value, kpath)
		case "maxLength":
			s.maxLength = c.integer(p.Value, kpath)
		case "pattern":
			s.pattern = c.regex(p.Value, kpath)
		case "format":
			if p.Value.Kind == document.KindString {
				s.format = p.Value.Str
			}
		case "minItems":
			s.minItems = c.integer(p.Value, kpath)
		case "maxItems":
			s.maxItems = c.integer(p.Value, kpath)
		case "uniqueItems":
			s.uniqueItems = p.Value.Kind == document.KindBool && p.Value.Bool
		case "items":
			if p.Value.Kind == document.KindSequence {
				for i, item := range p.Value.Items {
					s.prefixItems = append(s.prefixItems, c.compileNode(item, schemawatch.PointerIndex(kpath, i)))
				}
			} else {
				s.items = c.compileNode(p.Value, kpath)
			}
		case "prefixItems":
			if p.Value.Kind == document.KindSequence {
				for i, item := range p.Value.Items {
					s.prefixItems = append(s.prefixItems, c.compileNode(item, schemawatch.PointerIndex(kpath, i)))
				}
			} else {
				c.warnf(kpath, "prefixItems must be an array")
			}
		case "additionalItems":
			if p.Value.Kind == document.KindBool {
				b := p.Value.Bool
				s.addItemsOK = &b
			} else {
				s.addItems = c.compileNode(p.Value, kpath)
			}
		case "required":
			s.required = c.strings(p.Value, kpath)
		case "properties":
			if p.Value.Kind == document.KindMapping {
				s.propIndex = make(map[string]*Schema, len(p.Value.Pairs))
				for _, prop := range p.Value.Pairs {
					sub := c.compileNode(prop.Value, schemawatch.PointerKey(kpath, prop.Key))
					s.properties = append(s.properties, property{name: prop.Key, schema: sub})
					s.propIndex[prop.Key] = sub
				}
			} else {
				c.warnf(kpath, "properties must be an object")
			}
		case "patternProperties":
			if p.Value.Kind == document.KindMapping {
				for _, prop := range p.Value.Pairs {
					re := c.regexSource(prop.Key, kpath)
					if re == nil {
						continue
					}
					s.patternProps = append(s.patternProps, patternProperty{
						re:     re,
						source: prop.Key,
						schema: c.compileNode(prop.Value, schemawatch.PointerKey(kpath, prop.Key)),
					})
				}
			} else {
				c.warnf(kpath, "patternProperties must be an object")
			}
		case "additionalProperties":
			if p.Value.Kind == document.KindBool {
				b := p.Value.Bool
				s.addPropsOK = &b
			} else {
				s.addProps = c.compileNode(p.Value, kpath)
			}
		case "minProperties":
			s.minProperties = c.integer(p.Value, kpath)
		case "maxProperties":
			s.maxProperties = c.integer(p.Value, kpath)
		case "propertyNames":
			s.propertyNames = c.compileNode(p.Value, kpath)
		case "allOf":
			s.allOf = c.subschemas(p.Value, kpath)
		case "anyOf":
			s.anyOf = c.subschemas(p.Value, kpath)
		case "oneOf":
			s.oneOf = c.subschemas(p.Value, kpath)
		case "not":
			s.not = c.compileNode(p.Value, kpath)
		case "$ref":
			if p.Value.Kind == document.KindString {
				s.ref = p.Value.Str
				if loc, _ := splitRef(s.ref); loc != "" {
					c.refs[resolveLocation(c.location, loc)] = struct{}{}
				}
			} else {
				c.warnf(kpath, "$ref must be a string")
			}
		default:
			if _, ok := annotationKeywords[p.Key]; !ok {
				c.warnf(kpath, "unsupported keyword %q", p.Key)
			}
		}
	}
	return s
}

func (c *compiler) subschemas(n *document.Node, path string) []*Schema {
	if n.Kind != document.KindSequence {
		c.warnf(path, "expected an array of schemas")
		return nil
	}
	out := make([]*Schema, 0, len(n.Items))
	for i, item := range n.Items {
		out = append(out, c.compileNode(item, schemawatch.PointerIndex(path, i)))
	}
	return out
}

func (c *compiler) number(n *document.Node, path string) *float64 {
	if n.Kind != document.KindNumber {
		c.warnf(path, "expected a number, got %s", n.TypeName())
		return nil
	}
	f := n.Float()
	return &f
}

func (c *compiler) integer(n *document.Node, path string) *int {
	if n.Kind != document.KindNumber || !n.IsInteger() {
		c.warnf(path, "expected an integer, got %s", n.Describe())
		return nil
	}
	i := int(n.Float())
	return &i
}

func (c *compiler) strings(n *document.Node, path string) []string {
	if n.Kind != document.KindSequence {
		c.warnf(path, "expected an array of strings")
		return nil
	}
	out := make([]string, 0, len(n.Items))
	for _, item := range n.Items {
		if item.Kind == document.KindString {
			out = append(out, item.Str)
		}
	}
	return out
}

func (c *compiler) stringOrStrings(n *document.Node, path string) []string {
	if n.Kind == document.KindString {
		return []string{n.Str}
	}
	return c.strings(n, path)
}

func (c *compiler) regex(n *document.Node, path string) *regexp.Regexp {
	if n.Kind != document.KindString {
		c.warnf(path, "expected a regular expression string")
		return nil
	}
	return c.regexSource(n.Str, path)
}

func (c *compiler) regexSource(src, path string) *regexp.Regexp {
	re, err := regexp.Compile(src)
	if err != nil {
		c.warnf(path, "invalid pattern %q: %v", src, err)
		return nil
	}
	return re
}

func (c *compiler) warnf(path, format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf("%s: %s", orRoot(path), fmt.Sprintf(format, args...)))
}

func orRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
