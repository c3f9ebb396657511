package schema

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/schemawatch/schemawatch/document"
)

// Mapping associates documents matching a glob pattern with a schema
// location. Patterns use doublestar syntax and match against the
// slash-separated document path, or its base name for patterns without a
// separator.
type Mapping struct {
	Pattern  string `json:"pattern"`
	Location string `json:"location"`
}

// Config carries the user-provided resolver settings.
type Config struct {
	Mappings []Mapping `json:"mappings"`
}

// shebang hint on the first line of a document, e.g.
//
//	#$schema ./config.schema.json
var shebangRe = regexp.MustCompile(`^#\$schema[ \t]+(\S+)`)

// Resolver decides which schema governs a document. Resolution runs in
// tiers, the first hit winning:
//
//  1. an inline hint: a top-level "$schema" string member, or a
//     "#$schema <location>" comment on the first line
//  2. a configured mapping whose pattern matches the document path
//  3. conventions: a sibling <stem>.schema.json (or .yaml), then the same
//     under a schemas/ directory
//
// Relative locations resolve against the document's directory.
type Resolver struct {
	mu     sync.RWMutex
	cfg    Config
	gen    uint64
	loader Loader
	logger *zap.Logger
}

func NewResolver(cfg Config, loader Loader, logger *zap.Logger) *Resolver {
	if loader == nil {
		loader = FileLoader{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, gen: 1, loader: loader, logger: logger}
}

// SetConfig replaces the mapping table and bumps the generation so callers
// caching resolution results know to retry.
func (r *Resolver) SetConfig(cfg Config) {
	r.mu.Lock()
	r.cfg = cfg
	r.gen++
	r.mu.Unlock()
}

func (r *Resolver) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// Resolve returns the schema location governing the document at path, or
// false when no tier produces one. The parsed root may be nil (e.g. when the
// document failed to parse); inline mapping hints are then unavailable but
// the shebang and later tiers still apply.
func (r *Resolver) Resolve(path string, content []byte, root *document.Node) (string, bool) {
	if loc, ok := r.inlineHint(content, root); ok {
		return r.relative(path, loc), true
	}
	if loc, ok := r.mappingHit(path); ok {
		return r.relative(path, loc), true
	}
	return r.convention(path)
}

func (r *Resolver) inlineHint(content []byte, root *document.Node) (string, bool) {
	if root != nil && root.Kind == document.KindMapping {
		if n := root.Get("$schema"); n != nil && n.Kind == document.KindString && n.Str != "" {
			return n.Str, true
		}
	}
	firstLine := content
	if i := strings.IndexByte(string(content), '\n'); i >= 0 {
		firstLine = content[:i]
	}
	if m := shebangRe.FindSubmatch(firstLine); m != nil {
		return string(m[1]), true
	}
	return "", false
}

func (r *Resolver) mappingHit(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, m := range r.cfg.Mappings {
		target := slashed
		if !strings.ContainsRune(m.Pattern, '/') {
			target = base
		}
		ok, err := doublestar.Match(m.Pattern, target)
		if err != nil {
			r.logger.Warn("invalid mapping pattern", zap.String("pattern", m.Pattern), zap.Error(err))
			continue
		}
		if ok {
			return m.Location, true
		}
	}
	return "", false
}

func (r *Resolver) convention(path string) (string, bool) {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	candidates := []string{
		filepath.Join(dir, stem+".schema.json"),
		filepath.Join(dir, stem+".schema.yaml"),
		filepath.Join(dir, "schemas", stem+".schema.json"),
		filepath.Join(dir, "schemas", stem+".schema.yaml"),
	}
	for _, c := range candidates {
		if r.loader.Exists(c) {
			return c, true
		}
	}
	return "", false
}

func (r *Resolver) relative(docPath, loc string) string {
	return resolveLocation(docPath, loc)
}
