package schema

import (
	"regexp"

	"github.com/schemawatch/schemawatch/document"
)

// Schema is one compiled schema node: every recognized keyword becomes a
// composable check. References stay unexpanded ($ref kept as text) and are
// dereferenced lazily through the Store during evaluation, which is what makes
// recursive and mutually-recursive schema graphs finite to compile.
type Schema struct {
	location string // owning entry location
	path     string // JSON Pointer of this node within its schema document

	// boolean schemas: `true` admits everything, `false` nothing
	boolean *bool

	types []string
	enum  []*document.Node
	konst *document.Node

	minimum    *float64
	maximum    *float64
	exclMin    *float64
	exclMax    *float64
	multipleOf *float64

	minLength *int
	maxLength *int
	pattern   *regexp.Regexp
	format    string

	minItems    *int
	maxItems    *int
	uniqueItems bool
	items       *Schema
	prefixItems []*Schema
	addItems    *Schema
	addItemsOK  *bool

	required      []string
	properties    []property
	propIndex     map[string]*Schema
	patternProps  []patternProperty
	addProps      *Schema
	addPropsOK    *bool
	minProperties *int
	maxProperties *int
	propertyNames *Schema

	allOf []*Schema
	anyOf []*Schema
	oneOf []*Schema
	not   *Schema

	ref string
}

// property keeps schema-document order so evaluation stays deterministic.
type property struct {
	name   string
	schema *Schema
}

type patternProperty struct {
	re     *regexp.Regexp
	source string
	schema *Schema
}

// Path returns the JSON Pointer of this schema node within its document.
func (s *Schema) Path() string { return s.path }

// Location returns the location of the schema document this node belongs to.
func (s *Schema) Location() string { return s.location }
