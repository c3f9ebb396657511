package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCheckOn(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	err := runCheck(cmd, args)
	return out.String(), err
}

func TestCheckReportsViolationsAsError(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "config.json")
	writeFile(t, doc, `{}`)
	writeFile(t, filepath.Join(dir, "config.schema.json"), `{"type": "object", "required": ["name"]}`)

	out, err := runCheckOn(t, []string{doc})
	if !errors.Is(err, errViolations) {
		t.Fatalf("err = %v, want errViolations", err)
	}
	if !strings.Contains(out, "required") {
		t.Fatalf("diagnostics not printed, got %q", out)
	}
}

func TestCheckValidFileSucceeds(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "config.json")
	writeFile(t, doc, `{"name": "ok"}`)
	writeFile(t, filepath.Join(dir, "config.schema.json"), `{"type": "object", "required": ["name"]}`)

	out, err := runCheckOn(t, []string{doc})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if out != "" {
		t.Fatalf("unexpected output %q", out)
	}
}
