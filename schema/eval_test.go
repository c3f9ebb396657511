package schema_test

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
	"github.com/schemawatch/schemawatch/schema"
)

type mapLoader map[string]string

func (m mapLoader) Load(loc string) ([]byte, error) {
	if s, ok := m[loc]; ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("not found: %s", loc)
}

func (m mapLoader) Exists(loc string) bool {
	_, ok := m[loc]
	return ok
}

// validate compiles the schema under "root.json" (plus any extra files) and
// validates the JSON document against it.
func validate(t *testing.T, schemaSrc, docSrc string, extra map[string]string) schemawatch.Violations {
	t.Helper()
	loader := mapLoader{"root.json": schemaSrc}
	for k, v := range extra {
		loader[k] = v
	}
	store := schema.NewStore(loader, nil)
	entry, err := store.Compile("root.json")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	root, perr := document.Parse(schemawatch.DialectJSON, []byte(docSrc))
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	return schema.Validate(root, entry, store)
}

func TestValidateTypeMismatch(t *testing.T) {
	vs := validate(t,
		`{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`,
		`{"name": 42}`, nil)
	if len(vs) != 1 {
		t.Fatalf("got %d violations: %v", len(vs), vs)
	}
	v := vs[0]
	if v.InstancePath != "/name" || v.Code != schemawatch.CodeInvalidType {
		t.Fatalf("violation = %+v", v)
	}
	if !strings.Contains(v.Message, "expected string") {
		t.Fatalf("message = %q", v.Message)
	}
	if v.SchemaPath != "/properties/name/type" {
		t.Fatalf("schema path = %q", v.SchemaPath)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	vs := validate(t,
		`{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`,
		`{}`, nil)
	if len(vs) != 1 {
		t.Fatalf("got %d violations: %v", len(vs), vs)
	}
	v := vs[0]
	if v.InstancePath != "" || v.Code != schemawatch.CodeRequired {
		t.Fatalf("violation = %+v", v)
	}
	if !strings.Contains(v.Message, `"name"`) {
		t.Fatalf("message = %q", v.Message)
	}
}

func TestValidateValidDocument(t *testing.T) {
	vs := validate(t,
		`{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`,
		`{"name": "ok"}`, nil)
	if len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

func TestValidateIntegerAcceptsIntegralFloat(t *testing.T) {
	vs := validate(t, `{"type": "integer"}`, `1.0`, nil)
	if len(vs) != 0 {
		t.Fatalf("1.0 must satisfy integer, got %v", vs)
	}
	vs = validate(t, `{"type": "integer"}`, `1.5`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeInvalidType {
		t.Fatalf("1.5 must fail integer, got %v", vs)
	}
}

func TestValidateNumericBounds(t *testing.T) {
	src := `{"type": "number", "minimum": 0, "maximum": 10, "multipleOf": 0.5}`
	if vs := validate(t, src, `7.5`, nil); len(vs) != 0 {
		t.Fatalf("7.5 valid, got %v", vs)
	}
	if vs := validate(t, src, `-1`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodeTooSmall {
		t.Fatalf("-1 should fail minimum, got %v", vs)
	}
	if vs := validate(t, src, `7.3`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodeMultipleOf {
		t.Fatalf("7.3 should fail multipleOf, got %v", vs)
	}
	// float representation noise stays within tolerance
	if vs := validate(t, `{"multipleOf": 0.1}`, `0.3`, nil); len(vs) != 0 {
		t.Fatalf("0.3 is a multiple of 0.1, got %v", vs)
	}
}

func TestValidateStringConstraints(t *testing.T) {
	src := `{"type": "string", "minLength": 2, "maxLength": 4, "pattern": "^[a-z]+$"}`
	if vs := validate(t, src, `"ab"`, nil); len(vs) != 0 {
		t.Fatalf("ab valid, got %v", vs)
	}
	if vs := validate(t, src, `"a"`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodeTooShort {
		t.Fatalf("a should fail minLength, got %v", vs)
	}
	if vs := validate(t, src, `"AB"`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodePattern {
		t.Fatalf("AB should fail pattern, got %v", vs)
	}
}

func TestValidateFormatIsAdvisory(t *testing.T) {
	vs := validate(t, `{"type": "string", "format": "email"}`, `"not-an-email"`, nil)
	if len(vs) != 1 {
		t.Fatalf("got %v", vs)
	}
	if vs[0].Code != schemawatch.CodeFormat || vs[0].Severity != schemawatch.SeverityWarning {
		t.Fatalf("format finding must be a warning: %+v", vs[0])
	}
	// unknown formats are ignored
	if vs := validate(t, `{"format": "no-such-format"}`, `"anything"`, nil); len(vs) != 0 {
		t.Fatalf("unknown format must pass, got %v", vs)
	}
}

func TestValidateEnumAndConst(t *testing.T) {
	if vs := validate(t, `{"enum": ["a", 1, null]}`, `1.0`, nil); len(vs) != 0 {
		t.Fatalf("1.0 equals enum member 1, got %v", vs)
	}
	if vs := validate(t, `{"enum": ["a", "b"]}`, `"c"`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodeEnum {
		t.Fatalf("got %v", vs)
	}
	if vs := validate(t, `{"const": {"k": 1}}`, `{"k": 1}`, nil); len(vs) != 0 {
		t.Fatalf("const match, got %v", vs)
	}
	if vs := validate(t, `{"const": 3}`, `4`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodeConst {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateArrayConstraints(t *testing.T) {
	src := `{"type": "array", "items": {"type": "integer"}, "minItems": 1, "maxItems": 3, "uniqueItems": true}`
	if vs := validate(t, src, `[1, 2]`, nil); len(vs) != 0 {
		t.Fatalf("valid array, got %v", vs)
	}
	if vs := validate(t, src, `[]`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodeTooShort {
		t.Fatalf("empty should fail minItems, got %v", vs)
	}
	if vs := validate(t, src, `[1, 1]`, nil); len(vs) != 1 || vs[0].Code != schemawatch.CodeUniqueItems {
		t.Fatalf("got %v", vs)
	}
	vs := validate(t, src, `[1, "x", 3]`, nil)
	if len(vs) != 1 || vs[0].InstancePath != "/1" {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateTupleItems(t *testing.T) {
	src := `{"items": [{"type": "string"}, {"type": "integer"}], "additionalItems": false}`
	if vs := validate(t, src, `["a", 1]`, nil); len(vs) != 0 {
		t.Fatalf("valid tuple, got %v", vs)
	}
	vs := validate(t, src, `["a", 1, true]`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeAdditionalItem || vs[0].InstancePath != "/2" {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateObjectConstraints(t *testing.T) {
	src := `{
		"properties": {"a": {"type": "integer"}},
		"patternProperties": {"^x-": {"type": "string"}},
		"additionalProperties": false,
		"propertyNames": {"maxLength": 5}
	}`
	if vs := validate(t, src, `{"a": 1, "x-tag": "v"}`, nil); len(vs) != 0 {
		t.Fatalf("valid object, got %v", vs)
	}
	vs := validate(t, src, `{"other": 1}`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeAdditionalProperty || vs[0].InstancePath != "/other" {
		t.Fatalf("got %v", vs)
	}
	vs = validate(t, src, `{"a": 1, "x-much-too-long": "v"}`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodePropertyName {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateAllOfReportsUnion(t *testing.T) {
	src := `{"allOf": [{"required": ["a"]}, {"required": ["b"]}]}`
	vs := validate(t, src, `{}`, nil)
	if len(vs) != 2 {
		t.Fatalf("allOf must report every failing branch, got %v", vs)
	}
	for _, v := range vs {
		if v.Code != schemawatch.CodeRequired {
			t.Fatalf("violation = %+v", v)
		}
	}
}

func TestValidateAnyOfClosestMatch(t *testing.T) {
	src := `{"anyOf": [
		{"type": "object", "required": ["x", "y"]},
		{"type": "object", "required": ["z"]}
	]}`
	vs := validate(t, src, `{}`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeAnyOf {
		t.Fatalf("got %v", vs)
	}
	// branch 1 fails with fewer violations and wins the summary
	if !strings.Contains(vs[0].Message, "schema 1") {
		t.Fatalf("message = %q", vs[0].Message)
	}
}

func TestValidateAnyOfTieBreaksToFirst(t *testing.T) {
	src := `{"anyOf": [{"type": "string"}, {"type": "boolean"}]}`
	vs := validate(t, src, `5`, nil)
	if len(vs) != 1 || !strings.Contains(vs[0].Message, "schema 0") {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateOneOf(t *testing.T) {
	src := `{"oneOf": [{"type": "integer"}, {"type": "number"}]}`
	if vs := validate(t, src, `1.5`, nil); len(vs) != 0 {
		t.Fatalf("exactly one branch matches, got %v", vs)
	}
	vs := validate(t, src, `2`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeOneOfMultiple {
		t.Fatalf("got %v", vs)
	}
	vs = validate(t, src, `"s"`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeOneOfNone {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateNot(t *testing.T) {
	if vs := validate(t, `{"not": {"type": "string"}}`, `1`, nil); len(vs) != 0 {
		t.Fatalf("got %v", vs)
	}
	vs := validate(t, `{"not": {"type": "string"}}`, `"s"`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeNot {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateBooleanSchemas(t *testing.T) {
	if vs := validate(t, `true`, `{"anything": "goes"}`, nil); len(vs) != 0 {
		t.Fatalf("true schema accepts everything, got %v", vs)
	}
	if vs := validate(t, `false`, `1`, nil); len(vs) != 1 {
		t.Fatalf("false schema rejects everything, got %v", vs)
	}
	// additionalProperties: false via boolean sub-schema path
	vs := validate(t, `{"properties": {"a": true}, "additionalProperties": false}`, `{"a": 1, "b": 2}`, nil)
	if len(vs) != 1 || vs[0].InstancePath != "/b" {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateLocalRef(t *testing.T) {
	src := `{
		"properties": {"port": {"$ref": "#/$defs/port"}},
		"$defs": {"port": {"type": "integer", "minimum": 1, "maximum": 65535}}
	}`
	if vs := validate(t, src, `{"port": 8080}`, nil); len(vs) != 0 {
		t.Fatalf("got %v", vs)
	}
	vs := validate(t, src, `{"port": 99999}`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeTooBig || vs[0].InstancePath != "/port" {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateExternalRef(t *testing.T) {
	extra := map[string]string{
		"port.json": `{"type": "integer", "minimum": 1}`,
	}
	src := `{"properties": {"port": {"$ref": "port.json#"}}}`
	vs := validate(t, src, `{"port": 0}`, extra)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeTooSmall {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateBrokenRefSurfacesAsViolation(t *testing.T) {
	src := `{"properties": {"a": {"$ref": "missing.json#"}}}`
	vs := validate(t, src, `{"a": 1}`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeSchemaNotFound || vs[0].InstancePath != "/a" {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateCyclicRefTerminates(t *testing.T) {
	// a self-reference that consumes input terminates on a finite document
	src := `{"properties": {"child": {"$ref": "#"}}, "additionalProperties": false}`
	if vs := validate(t, src, `{"child": {"child": {}}}`, nil); len(vs) != 0 {
		t.Fatalf("got %v", vs)
	}
	vs := validate(t, src, `{"child": {"bad": 1}}`, nil)
	if len(vs) != 1 || vs[0].InstancePath != "/child/bad" {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateCyclicRefWithoutProgress(t *testing.T) {
	// a self-reference that consumes no input trips the cycle guard instead
	// of hanging
	vs := validate(t, `{"$ref": "#"}`, `1`, nil)
	if len(vs) != 1 || vs[0].Code != schemawatch.CodeRecursionLimit {
		t.Fatalf("got %v", vs)
	}
}

func TestValidateDeterministicOrder(t *testing.T) {
	src := `{
		"required": ["z"],
		"properties": {
			"a": {"type": "string"},
			"b": {"type": "integer", "minimum": 10}
		}
	}`
	doc := `{"a": 1, "b": 3}`
	first := validate(t, src, doc, nil)
	second := validate(t, src, doc, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("validation must be deterministic:\n%v\n%v", first, second)
	}
	if len(first) != 3 {
		t.Fatalf("got %v", first)
	}
	// violations follow document order: the root-level required finding
	// first, then /a, then /b
	if first[0].Code != schemawatch.CodeRequired || first[1].InstancePath != "/a" || first[2].InstancePath != "/b" {
		t.Fatalf("order = %v", first)
	}
}
