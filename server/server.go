// Package server exposes the validation pipeline over the Language Server
// Protocol. It speaks full-document sync: every change carries the complete
// text, which the session layer debounces before validating.
package server

import (
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
	"go.uber.org/zap"

	"github.com/schemawatch/schemawatch/schema"
	"github.com/schemawatch/schemawatch/session"
)

const Name = "schemawatch"

// Options configures the language server.
type Options struct {
	// Debounce overrides the session default when positive.
	Debounce time.Duration
	// Mappings seeds the resolver before the client sends configuration.
	Mappings schema.Config
	// Debug enables wire-level protocol logging.
	Debug bool
}

type Server struct {
	opts    Options
	logger  *zap.Logger
	pub     *notifier
	coord   *session.Coordinator
	handler protocol.Handler

	traceMu sync.Mutex
	trace   protocol.TraceValue
}

func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{opts: opts, logger: logger, pub: &notifier{}, trace: protocol.TraceValueOff}
	s.coord = session.NewCoordinator(
		schema.NewStore(nil, logger),
		s.pub,
		session.Options{DebounceInterval: opts.Debounce, Resolver: opts.Mappings},
		logger,
	)
	s.handler = protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		SetTrace:                        s.setTrace,
		TextDocumentDidOpen:             s.didOpen,
		TextDocumentDidChange:           s.didChange,
		TextDocumentDidSave:             s.didSave,
		TextDocumentDidClose:            s.didClose,
		WorkspaceDidChangeWatchedFiles:  s.didChangeWatchedFiles,
		WorkspaceDidChangeConfiguration: s.didChangeConfiguration,
	}
	return s
}

// Coordinator exposes the session layer, mainly for tests.
func (s *Server) Coordinator() *session.Coordinator { return s.coord }

// RunStdio serves LSP over stdin/stdout until the client disconnects.
func (s *Server) RunStdio() error {
	srv := glspserver.NewServer(&s.handler, Name, s.opts.Debug)
	return srv.RunStdio()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (interface{}, error) {
	s.pub.set(ctx.Notify)
	if cfg, ok := decodeConfig(params.InitializationOptions); ok {
		s.coord.UpdateConfig(cfg)
	}

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = protocol.TextDocumentSyncKindFull

	return &protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name: Name,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	s.setTraceValue(protocol.TraceValueOff)
	s.coord.Shutdown()
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	s.setTraceValue(params.Value)
	return nil
}

func (s *Server) setTraceValue(v protocol.TraceValue) {
	s.traceMu.Lock()
	s.trace = v
	s.traceMu.Unlock()
}

// TraceValue reports the trace level last requested by the client.
func (s *Server) TraceValue() protocol.TraceValue {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	return s.trace
}

func (s *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.pub.set(ctx.Notify)
	doc := params.TextDocument
	s.coord.Open(doc.URI, doc.LanguageID, doc.Version, doc.Text)
	return nil
}

func (s *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.pub.set(ctx.Notify)
	// full sync: the last whole-document change wins
	var text string
	var seen bool
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			text, seen = whole.Text, true
		}
	}
	if seen {
		s.coord.Change(params.TextDocument.URI, params.TextDocument.Version, text)
	}
	return nil
}

func (s *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.pub.set(ctx.Notify)
	s.coord.Save(params.TextDocument.URI, params.Text)
	return nil
}

func (s *Server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.coord.Close(params.TextDocument.URI)
	return nil
}

func (s *Server) didChangeWatchedFiles(ctx *glsp.Context, params *protocol.DidChangeWatchedFilesParams) error {
	s.pub.set(ctx.Notify)
	for _, change := range params.Changes {
		s.coord.SchemaChanged(strings.TrimPrefix(change.URI, "file://"))
	}
	return nil
}

func (s *Server) didChangeConfiguration(ctx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	if cfg, ok := decodeConfig(params.Settings); ok {
		s.coord.UpdateConfig(cfg)
	}
	return nil
}

// decodeConfig extracts a resolver configuration from loosely typed client
// settings. Both a bare config object and one nested under a "schemawatch"
// key are accepted.
func decodeConfig(raw interface{}) (schema.Config, bool) {
	if raw == nil {
		return schema.Config{}, false
	}
	if m, ok := raw.(map[string]interface{}); ok {
		if nested, ok := m["schemawatch"]; ok {
			raw = nested
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return schema.Config{}, false
	}
	var cfg schema.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return schema.Config{}, false
	}
	return cfg, len(cfg.Mappings) > 0
}
