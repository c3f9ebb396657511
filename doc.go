// Package schemawatch validates structured configuration documents against a
// discovered schema and reports the result as position-anchored diagnostics.
//
// It provides:
//
//   - a stable violation model (JSON Pointer paths, code, message, severity)
//   - dialect classification for JSON/YAML/TOML/XML inputs
//   - a dialect-neutral document tree with source spans (document/)
//   - schema compilation, caching, resolution and evaluation (schema/)
//   - a debounced per-document validation pipeline (session/)
//   - an LSP front end publishing diagnostics to editor clients (server/)
//
// Only shared value types live in the root package; each pipeline stage has
// its own package and is testable in isolation. Workspace configuration is
// passed in explicitly, never read from ambient state, so resolution stays
// deterministic.
//
// Typical usage:
//
//	node, perr := document.Parse(schemawatch.DialectJSON, data)
//	entry, err := store.Compile(location)
//	violations := schema.Validate(node, entry, store)
package schemawatch
