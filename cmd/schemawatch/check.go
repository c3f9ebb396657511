package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
	"github.com/schemawatch/schemawatch/schema"
	"github.com/schemawatch/schemawatch/session"
	"github.com/schemawatch/schemawatch/watch"
)

var (
	flagSchema   string
	flagMappings []string
	flagWatch    bool
)

// errViolations signals a non-zero exit after diagnostics were already
// printed; main suppresses the error text for it.
var errViolations = errors.New("violations found")

var checkCmd = &cobra.Command{
	Use:   "check [files or globs]",
	Short: "Validate documents and print diagnostics",
	Long: `check validates each named document against its governing schema and
prints diagnostics in file:line:col form. Globs use ** for recursive
matching. The exit status is 1 when any error-severity diagnostic was
reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&flagSchema, "schema", "", "validate every document against this schema, skipping discovery")
	checkCmd.Flags().StringArrayVar(&flagMappings, "mapping", nil, "pattern=location pair mapping documents to schemas (repeatable)")
	checkCmd.Flags().BoolVar(&flagWatch, "watch", false, "keep running and revalidate when files change")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := parseMappings(flagMappings)
	if err != nil {
		return err
	}
	files, err := expandArgs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(args, " "))
	}

	store := schema.NewStore(nil, logger)
	resolver := schema.NewResolver(cfg, store.Loader(), logger)
	checker := &checker{store: store, resolver: resolver, schemaOverride: flagSchema, out: cmd.OutOrStdout()}

	errCount := checker.run(files)
	if !flagWatch {
		if errCount > 0 {
			return errViolations
		}
		return nil
	}

	return checker.watch(cmd, files, logger)
}

type checker struct {
	store          *schema.Store
	resolver       *schema.Resolver
	schemaOverride string
	out            io.Writer
}

// run validates every file and returns the number of error-severity
// diagnostics printed.
func (c *checker) run(files []string) int {
	errCount := 0
	for _, f := range files {
		for _, d := range c.checkFile(f) {
			fmt.Fprintf(c.out, "%s:%d:%d: %s: %s [%s]\n",
				f, d.Span.Start.Line+1, d.Span.Start.Column+1,
				d.Severity, d.Message, d.Code)
			if d.Severity == schemawatch.SeverityError {
				errCount++
			}
		}
	}
	return errCount
}

func (c *checker) checkFile(path string) []session.Diagnostic {
	content, err := os.ReadFile(path)
	if err != nil {
		return []session.Diagnostic{{
			Severity: schemawatch.SeverityError,
			Code:     schemawatch.CodeParseError,
			Message:  err.Error(),
			Source:   "/",
		}}
	}

	dialect := schemawatch.DetectDialect(schemawatch.DialectHint{Path: path, Content: content})
	if dialect == schemawatch.DialectUnknown {
		return nil
	}
	root, perr := document.Parse(dialect, content)
	if perr != nil {
		return []session.Diagnostic{{
			Span: document.Span{
				Start: perr.Position,
				End:   document.Position{Line: perr.Position.Line, Column: perr.Position.Column + 1},
			},
			Severity: schemawatch.SeverityError,
			Code:     schemawatch.CodeParseError,
			Message:  perr.Message,
			Source:   "/",
		}}
	}

	loc := c.schemaOverride
	if loc == "" {
		resolved, ok := c.resolver.Resolve(path, content, root)
		if !ok {
			return nil
		}
		loc = resolved
	}
	entry, err := c.store.Compile(loc)
	if err != nil {
		return []session.Diagnostic{{
			Severity: schemawatch.SeverityError,
			Code:     schemawatch.CodeSchemaNotFound,
			Message:  err.Error(),
			Source:   "/",
		}}
	}

	violations := schema.Validate(root, entry, c.store)
	diags := make([]session.Diagnostic, 0, len(violations))
	for _, v := range violations {
		var span document.Span
		if n := root.Lookup(v.InstancePath); n != nil {
			span = n.Span
		} else {
			span = document.LocatePointer(content, v.InstancePath)
		}
		diags = append(diags, session.Diagnostic{
			Span:     span,
			Severity: v.Severity,
			Code:     v.Code,
			Message:  v.Message,
			Source:   v.InstancePath,
		})
	}
	return diags
}

// watch revalidates all files whenever anything in their directories
// changes, invalidating compiled schemas first so edits to schema files take
// effect.
func (c *checker) watch(cmd *cobra.Command, files []string, logger *zap.Logger) error {
	w, err := watch.New(func(changed string) {
		c.store.Invalidate(changed)
		fmt.Fprintf(c.out, "--- %s changed\n", changed)
		c.run(files)
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	dirs := map[string]struct{}{}
	for _, f := range files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	if flagSchema != "" {
		dirs[filepath.Dir(flagSchema)] = struct{}{}
	}
	for _, d := range sortedDirs(dirs) {
		if err := w.Add(d); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

func parseMappings(raw []string) (schema.Config, error) {
	var cfg schema.Config
	for _, m := range raw {
		pattern, location, ok := strings.Cut(m, "=")
		if !ok || pattern == "" || location == "" {
			return cfg, fmt.Errorf("invalid mapping %q, want pattern=location", m)
		}
		cfg.Mappings = append(cfg.Mappings, schema.Mapping{Pattern: pattern, Location: location})
	}
	return cfg, nil
}

// expandArgs resolves glob arguments to file paths, passing plain paths
// through so missing files still get reported.
func expandArgs(args []string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}
	for _, a := range args {
		matches := []string{a}
		if strings.ContainsAny(a, "*?[{") {
			var err error
			matches, err = doublestar.FilepathGlob(a)
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", a, err)
			}
		}
		for _, m := range matches {
			if _, dup := seen[m]; !dup {
				seen[m] = struct{}{}
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func sortedDirs(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
