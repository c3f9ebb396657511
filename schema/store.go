package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
)

// Loader abstracts schema storage so resolution and caching stay testable
// without touching disk.
type Loader interface {
	Load(location string) ([]byte, error)
	Exists(location string) bool
}

// FileLoader reads schemas from the local filesystem. file:// URIs and plain
// paths are both accepted.
type FileLoader struct{}

func (FileLoader) Load(location string) ([]byte, error) {
	return os.ReadFile(stripFileScheme(location))
}

func (FileLoader) Exists(location string) bool {
	_, err := os.Stat(stripFileScheme(location))
	return err == nil
}

func stripFileScheme(location string) string {
	return strings.TrimPrefix(location, "file://")
}

// Entry is one compiled schema document. Entries are immutable after Compile
// returns them; a changed schema produces a new Entry that atomically
// replaces the cache slot. The sub-schema memo is an internal cache of
// pointer targets and does not change observable state.
type Entry struct {
	Location    string
	Fingerprint uint64
	Root        *Schema
	Refs        []string // external locations referenced anywhere in the document
	Warnings    []string
	LoadedAt    time.Time

	doc  *document.Node
	subs sync.Map // JSON Pointer -> *Schema
}

// schemaAt resolves a JSON Pointer within this schema document, compiling the
// target subtree on first use. Lazy compilation here is what lets $ref chains
// reference definitions without eager infinite expansion.
func (e *Entry) schemaAt(pointer string) (*Schema, error) {
	if pointer == "" || pointer == "/" {
		return e.Root, nil
	}
	if cached, ok := e.subs.Load(pointer); ok {
		return cached.(*Schema), nil
	}
	target := e.doc.Lookup(pointer)
	if target == nil {
		return nil, &Error{Kind: ErrParseFailure, Location: e.Location, Detail: fmt.Sprintf("no schema at pointer %q", pointer)}
	}
	c := &compiler{location: e.Location, refs: map[string]struct{}{}}
	sub := c.compileNode(target, pointer)
	actual, _ := e.subs.LoadOrStore(pointer, sub)
	return actual.(*Schema), nil
}

// Store loads, compiles, and caches schema documents by location. The cache
// is the only cross-document shared mutable resource in the system; slots are
// replaced atomically so concurrent readers never observe a half-built entry.
type Store struct {
	mu     sync.Mutex // serializes invalidation scans
	cache  *lru.Cache
	loader Loader
	logger *zap.Logger
}

const defaultCacheSize = 128

// NewStore builds a Store. A nil loader defaults to the filesystem; a nil
// logger defaults to no-op.
func NewStore(loader Loader, logger *zap.Logger) *Store {
	if loader == nil {
		loader = FileLoader{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New(defaultCacheSize)
	return &Store{cache: cache, loader: loader, logger: logger}
}

// Loader exposes the configured loader, used by the Resolver to probe
// conventional locations.
func (s *Store) Loader() Loader { return s.loader }

// Compile returns the compiled entry for a location. An already-cached entry
// whose content fingerprint is unchanged is returned without recompiling.
func (s *Store) Compile(location string) (*Entry, error) {
	raw, err := s.loader.Load(location)
	if err != nil {
		return nil, &Error{Kind: ErrNotFound, Location: location, Detail: err.Error()}
	}
	fp := xxhash.Sum64(raw)
	if cached, ok := s.cache.Get(location); ok {
		entry := cached.(*Entry)
		if entry.Fingerprint == fp {
			return entry, nil
		}
	}

	doc, perr := document.Parse(schemaDialect(location), raw)
	if perr != nil {
		return nil, &Error{Kind: ErrParseFailure, Location: location, Detail: perr.Error()}
	}
	c := &compiler{location: location, refs: map[string]struct{}{}}
	root := c.compileNode(doc, "")
	collectRefs(doc, location, c.refs)

	entry := &Entry{
		Location:    location,
		Fingerprint: fp,
		Root:        root,
		Refs:        sortedKeys(c.refs),
		Warnings:    c.warnings,
		LoadedAt:    time.Now(),
		doc:         doc,
	}
	for _, w := range entry.Warnings {
		s.logger.Warn("schema compile warning", zap.String("location", location), zap.String("warning", w))
	}
	s.cache.Add(location, entry)
	return entry, nil
}

// Invalidate evicts a location and every cached entry that references it,
// directly or transitively. It returns the evicted locations so the caller
// can re-validate the documents they governed.
func (s *Store) Invalidate(location string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := map[string]struct{}{location: {}}
	for {
		grew := false
		for _, key := range s.cache.Keys() {
			loc := key.(string)
			if _, gone := evicted[loc]; gone {
				continue
			}
			cached, ok := s.cache.Get(key)
			if !ok {
				continue
			}
			for _, ref := range cached.(*Entry).Refs {
				if _, gone := evicted[ref]; gone {
					evicted[loc] = struct{}{}
					grew = true
					break
				}
			}
		}
		if !grew {
			break
		}
	}
	out := sortedKeys(evicted)
	for _, loc := range out {
		s.cache.Remove(loc)
	}
	return out
}

// schemaDialect picks the parser for a schema document from its extension.
// Schemas are JSON by default and may themselves be YAML.
func schemaDialect(location string) schemawatch.Dialect {
	switch strings.ToLower(filepath.Ext(stripFileScheme(location))) {
	case ".yaml", ".yml":
		return schemawatch.DialectYAML
	default:
		return schemawatch.DialectJSON
	}
}

// splitRef separates a $ref into its location and pointer fragment.
func splitRef(ref string) (location, fragment string) {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// resolveLocation interprets a referenced location relative to the document
// that mentions it. Absolute paths and URLs pass through.
func resolveLocation(base, rel string) string {
	if strings.Contains(rel, "://") || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(filepath.Dir(stripFileScheme(base)), rel)
}

// collectRefs scans the whole schema document for $ref strings so transitive
// invalidation sees references inside definitions that were never evaluated.
func collectRefs(n *document.Node, base string, out map[string]struct{}) {
	switch n.Kind {
	case document.KindMapping:
		for _, p := range n.Pairs {
			if p.Key == "$ref" && p.Value.Kind == document.KindString {
				if loc, _ := splitRef(p.Value.Str); loc != "" {
					out[resolveLocation(base, loc)] = struct{}{}
				}
			}
			collectRefs(p.Value, base, out)
		}
	case document.KindSequence:
		for _, item := range n.Items {
			collectRefs(item, base, out)
		}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
