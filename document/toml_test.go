package document_test

import (
	"testing"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
)

func TestParseTOMLScalars(t *testing.T) {
	src := "title = \"demo\"\ncount = 5\nratio = 0.25\nenabled = false\n"
	n := mustParse(t, schemawatch.DialectTOML, src)
	if got := n.Get("title"); got.Kind != document.KindString || got.Str != "demo" {
		t.Fatalf("title = %+v", got)
	}
	if got := n.Get("count"); got.Number != "5" || !got.IsInteger() {
		t.Fatalf("count = %+v", got)
	}
	if got := n.Get("ratio"); got.IsInteger() {
		t.Fatalf("ratio should be fractional: %+v", got)
	}
	if got := n.Get("enabled"); got.Kind != document.KindBool || got.Bool {
		t.Fatalf("enabled = %+v", got)
	}
}

func TestParseTOMLPreservesDocumentOrder(t *testing.T) {
	src := "zeta = 1\nalpha = 2\nmike = 3\n"
	n := mustParse(t, schemawatch.DialectTOML, src)
	want := []string{"zeta", "alpha", "mike"}
	if len(n.Pairs) != len(want) {
		t.Fatalf("pairs = %+v", n.Pairs)
	}
	for i, p := range n.Pairs {
		if p.Key != want[i] {
			t.Fatalf("pair %d = %q, want %q", i, p.Key, want[i])
		}
	}
}

func TestParseTOMLTables(t *testing.T) {
	src := "[server]\nhost = \"a\"\nport = 80\n\n[client]\nretries = 3\n"
	n := mustParse(t, schemawatch.DialectTOML, src)
	server := n.Get("server")
	if server == nil || server.Kind != document.KindMapping {
		t.Fatalf("server = %+v", server)
	}
	if got := server.Get("host"); got == nil || got.Str != "a" {
		t.Fatalf("host = %+v", got)
	}
	if got := n.Lookup("/client/retries"); got == nil || got.Number != "3" {
		t.Fatalf("retries = %+v", got)
	}
}

func TestParseTOMLArrayOfTables(t *testing.T) {
	src := "[[item]]\nname = \"a\"\n\n[[item]]\nname = \"b\"\n"
	n := mustParse(t, schemawatch.DialectTOML, src)
	items := n.Get("item")
	if items == nil || items.Kind != document.KindSequence || len(items.Items) != 2 {
		t.Fatalf("item = %+v", items)
	}
	if got := items.Items[1].Get("name"); got == nil || got.Str != "b" {
		t.Fatalf("item[1].name = %+v", got)
	}
}

func TestParseTOMLSpansRecoveredTextually(t *testing.T) {
	src := "title = \"demo\"\ncount = 5\n"
	n := mustParse(t, schemawatch.DialectTOML, src)
	if got := n.Pairs[0].KeySpan.Start; got != (document.Position{Line: 0, Column: 0}) {
		t.Fatalf("title key at %+v", got)
	}
	count := n.Get("count")
	if got := count.Span.Start; got != (document.Position{Line: 1, Column: 8}) {
		t.Fatalf("count value at %+v", got)
	}
}

func TestParseTOMLDatetimeBecomesString(t *testing.T) {
	src := "when = 2024-01-02T03:04:05Z\n"
	n := mustParse(t, schemawatch.DialectTOML, src)
	got := n.Get("when")
	if got.Kind != document.KindString || got.Str != "2024-01-02T03:04:05Z" {
		t.Fatalf("when = %+v", got)
	}
}

func TestParseTOMLSyntaxError(t *testing.T) {
	_, perr := document.Parse(schemawatch.DialectTOML, []byte("a = \n"))
	if perr == nil {
		t.Fatalf("expected syntax error")
	}
	if perr.Message == "" {
		t.Fatalf("expected a message, got %+v", perr)
	}
}

func TestParseTOMLSyntaxErrorPosition(t *testing.T) {
	_, perr := document.Parse(schemawatch.DialectTOML, []byte("ok = true\na = \n"))
	if perr == nil {
		t.Fatalf("expected syntax error")
	}
	if perr.Position.Line != 1 {
		t.Fatalf("line = %d, want 1", perr.Position.Line)
	}
}
