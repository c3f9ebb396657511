package schemawatch_test

import (
	"testing"

	schemawatch "github.com/schemawatch/schemawatch"
)

func TestDetectDialectLanguageID(t *testing.T) {
	cases := []struct {
		langID string
		want   schemawatch.Dialect
	}{
		{"json", schemawatch.DialectJSON},
		{"jsonc", schemawatch.DialectJSON},
		{"yaml", schemawatch.DialectYAML},
		{"toml", schemawatch.DialectTOML},
		{"xml", schemawatch.DialectXML},
		{"markdown", schemawatch.DialectUnknown},
	}
	for _, c := range cases {
		got := schemawatch.DetectDialect(schemawatch.DialectHint{LanguageID: c.langID})
		if got != c.want {
			t.Fatalf("language %q: got %v, want %v", c.langID, got, c.want)
		}
	}
}

func TestDetectDialectLanguageIDWinsOverExtension(t *testing.T) {
	got := schemawatch.DetectDialect(schemawatch.DialectHint{
		LanguageID: "yaml",
		Path:       "config.json",
	})
	if got != schemawatch.DialectYAML {
		t.Fatalf("got %v, want YAML", got)
	}
}

func TestDetectDialectExtension(t *testing.T) {
	cases := []struct {
		path string
		want schemawatch.Dialect
	}{
		{"a.json", schemawatch.DialectJSON},
		{"a.yaml", schemawatch.DialectYAML},
		{"a.yml", schemawatch.DialectYAML},
		{"a.toml", schemawatch.DialectTOML},
		{"a.xml", schemawatch.DialectXML},
		{"Makefile", schemawatch.DialectUnknown},
	}
	for _, c := range cases {
		got := schemawatch.DetectDialect(schemawatch.DialectHint{Path: c.path})
		if got != c.want {
			t.Fatalf("path %q: got %v, want %v", c.path, got, c.want)
		}
	}
}

func TestDetectDialectContentSniff(t *testing.T) {
	cases := []struct {
		content string
		want    schemawatch.Dialect
	}{
		{`  {"a": 1}`, schemawatch.DialectJSON},
		{`[1, 2]`, schemawatch.DialectJSON},
		{"<root/>", schemawatch.DialectXML},
		{"key: value", schemawatch.DialectUnknown},
		{"", schemawatch.DialectUnknown},
	}
	for _, c := range cases {
		got := schemawatch.DetectDialect(schemawatch.DialectHint{Content: []byte(c.content)})
		if got != c.want {
			t.Fatalf("content %q: got %v, want %v", c.content, got, c.want)
		}
	}
}
