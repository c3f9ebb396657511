package server

import (
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/schemawatch/schemawatch/session"
)

// notifier bridges the session coordinator to the LSP connection. The notify
// function only becomes available once the client connects, so publishes
// before then are dropped.
type notifier struct {
	mu     sync.RWMutex
	notify glsp.NotifyFunc
}

func (n *notifier) set(fn glsp.NotifyFunc) {
	n.mu.Lock()
	n.notify = fn
	n.mu.Unlock()
}

func (n *notifier) Publish(uri string, version int32, diags []session.Diagnostic) {
	n.mu.RLock()
	notify := n.notify
	n.mu.RUnlock()
	if notify == nil {
		return
	}
	v := protocol.UInteger(version)
	notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     &v,
		Diagnostics: toProtocolDiagnostics(diags),
	})
}

func toProtocolDiagnostics(diags []session.Diagnostic) []protocol.Diagnostic {
	// never nil: an empty slice clears the client's list
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := protocol.DiagnosticSeverity(d.Severity)
		code := protocol.IntegerOrString{Value: d.Code}
		source := d.Source
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: protocol.UInteger(d.Span.Start.Line), Character: protocol.UInteger(d.Span.Start.Column)},
				End:   protocol.Position{Line: protocol.UInteger(d.Span.End.Line), Character: protocol.UInteger(d.Span.End.Column)},
			},
			Severity: &severity,
			Code:     &code,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}
