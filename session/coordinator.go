package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schemawatch/schemawatch/schema"
)

// DefaultDebounce is how long a document must be quiet after an edit before
// validation runs.
const DefaultDebounce = 200 * time.Millisecond

// Options configures a Coordinator.
type Options struct {
	// DebounceInterval overrides DefaultDebounce when positive.
	DebounceInterval time.Duration
	// Resolver seeds the schema resolver's mapping table.
	Resolver schema.Config
}

// Coordinator fans document lifecycle events out to per-document sessions
// and owns the shared schema store and resolver. All methods are safe for
// concurrent use.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*docSession
	closed   bool

	store    *schema.Store
	resolver *schema.Resolver
	pub      Publisher
	debounce time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewCoordinator(store *schema.Store, pub Publisher, opts Options, logger *zap.Logger) *Coordinator {
	if store == nil {
		store = schema.NewStore(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := opts.DebounceInterval
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Coordinator{
		sessions: make(map[string]*docSession),
		store:    store,
		resolver: schema.NewResolver(opts.Resolver, store.Loader(), logger),
		pub:      pub,
		debounce: debounce,
		logger:   logger,
	}
}

// Store exposes the shared schema store, e.g. for batch validation reusing a
// coordinator's cache.
func (c *Coordinator) Store() *schema.Store { return c.store }

// Open registers a document and schedules its first validation.
func (c *Coordinator) Open(uri, languageID string, version int32, content string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	d, ok := c.sessions[uri]
	if !ok {
		d = newDocSession(c, uri)
		c.sessions[uri] = d
		c.wg.Add(1)
		go d.run()
	}
	c.mu.Unlock()
	d.version.Store(int64(version))
	d.events <- event{kind: evOpen, languageID: languageID, content: content, hasContent: true}
}

// Change records a new document version. The version is noted immediately so
// an in-flight validation of older content discards its result.
func (c *Coordinator) Change(uri string, version int32, content string) {
	if d := c.session(uri); d != nil {
		d.version.Store(int64(version))
		d.events <- event{kind: evChange, content: content, hasContent: true}
	}
}

// Save validates immediately, skipping the debounce.
func (c *Coordinator) Save(uri string, content *string) {
	if d := c.session(uri); d != nil {
		ev := event{kind: evSave}
		if content != nil {
			ev.content, ev.hasContent = *content, true
		}
		d.events <- ev
	}
}

// Close tears down the document's session and clears its diagnostics.
func (c *Coordinator) Close(uri string) {
	c.mu.Lock()
	d, ok := c.sessions[uri]
	if ok {
		delete(c.sessions, uri)
	}
	c.mu.Unlock()
	if ok {
		d.events <- event{kind: evClose}
	}
}

// SchemaChanged invalidates the schema at location plus everything that
// references it, then revalidates the documents governed by an evicted
// schema. Documents without a resolved schema also retry, since the change
// may be the schema they were waiting for.
func (c *Coordinator) SchemaChanged(location string) {
	evicted := c.store.Invalidate(location)
	set := make(map[string]struct{}, len(evicted)+1)
	set[location] = struct{}{}
	for _, loc := range evicted {
		set[loc] = struct{}{}
	}
	c.logger.Info("schema changed", zap.String("location", location), zap.Int("evicted", len(evicted)))
	for _, d := range c.snapshot() {
		d.events <- event{kind: evRevalidate, evicted: set}
	}
}

// UpdateConfig swaps the resolver mapping table and schedules revalidation of
// every open document.
func (c *Coordinator) UpdateConfig(cfg schema.Config) {
	c.resolver.SetConfig(cfg)
	for _, d := range c.snapshot() {
		d.events <- event{kind: evConfig}
	}
}

// Shutdown closes every session and waits for their goroutines to drain.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.closed = true
	sessions := c.sessions
	c.sessions = make(map[string]*docSession)
	c.mu.Unlock()
	for _, d := range sessions {
		d.events <- event{kind: evClose}
	}
	c.wg.Wait()
}

func (c *Coordinator) session(uri string) *docSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[uri]
}

func (c *Coordinator) snapshot() []*docSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*docSession, 0, len(c.sessions))
	for _, d := range c.sessions {
		out = append(out, d)
	}
	return out
}
