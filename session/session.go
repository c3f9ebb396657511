package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
	"github.com/schemawatch/schemawatch/schema"
)

type eventKind int

const (
	evOpen eventKind = iota
	evChange
	evSave
	evRevalidate
	evConfig
	evClose
)

type event struct {
	kind       eventKind
	languageID string
	content    string
	hasContent bool
	// evicted carries the schema locations whose compiled entries were
	// dropped, for evRevalidate.
	evicted map[string]struct{}
}

const (
	stateIdle       = "idle"
	stateParsing    = "parsing"
	stateResolving  = "resolving"
	stateValidating = "validating"
	stateSettled    = "settled"
	stateClosed     = "closed"
)

// docSession owns one open document. All mutable state except version lives
// in the run goroutine; version is written by the coordinator at event
// receipt so a pipeline run can detect it went stale mid-flight.
type docSession struct {
	uri     string
	path    string
	co      *Coordinator
	events  chan event
	version atomic.Int64
	machine *fsm.FSM

	languageID string
	content    []byte

	// resolution cache, valid for one (config generation, content) pair
	resolvedGen  uint64
	resolvedHash uint64
	resolvedLoc  string
	resolvedOK   bool
	haveResolved bool
}

func newDocSession(co *Coordinator, uri string) *docSession {
	d := &docSession{
		uri:    uri,
		path:   uriToPath(uri),
		co:     co,
		events: make(chan event, 16),
	}
	d.machine = fsm.NewFSM(stateIdle, fsm.Events{
		{Name: "start", Src: []string{stateIdle, stateSettled}, Dst: stateParsing},
		{Name: "resolve", Src: []string{stateParsing}, Dst: stateResolving},
		{Name: "validate", Src: []string{stateResolving}, Dst: stateValidating},
		{Name: "settle", Src: []string{stateParsing, stateResolving, stateValidating}, Dst: stateSettled},
		{Name: "close", Src: []string{stateIdle, stateParsing, stateResolving, stateValidating, stateSettled}, Dst: stateClosed},
	}, fsm.Callbacks{})
	return d
}

// transition fires a lifecycle event and reports whether the machine
// accepted it from its current state.
func (d *docSession) transition(name string) bool {
	if err := d.machine.Event(context.Background(), name); err != nil {
		d.co.logger.Debug("session transition rejected",
			zap.String("uri", d.uri), zap.String("event", name), zap.Error(err))
		return false
	}
	return true
}

func (d *docSession) state() string { return d.machine.Current() }

// run is the session goroutine. Edits reset the debounce timer; saves and
// schema changes validate immediately.
func (d *docSession) run() {
	defer d.co.wg.Done()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false
	disarm := func() {
		if armed && !timer.Stop() {
			<-timer.C
		}
		armed = false
	}
	for {
		select {
		case ev := <-d.events:
			switch ev.kind {
			case evOpen, evChange:
				if ev.languageID != "" {
					d.languageID = ev.languageID
				}
				if ev.hasContent {
					d.content = []byte(ev.content)
				}
				disarm()
				timer.Reset(d.co.debounce)
				armed = true
			case evSave:
				if ev.hasContent {
					d.content = []byte(ev.content)
				}
				disarm()
				d.runPipeline()
			case evRevalidate:
				if d.affectedBy(ev.evicted) {
					disarm()
					// the change may alter what resolution finds
					d.haveResolved = false
					d.runPipeline()
				}
			case evConfig:
				disarm()
				timer.Reset(d.co.debounce)
				armed = true
			case evClose:
				disarm()
				d.transition("close")
				d.co.pub.Publish(d.uri, int32(d.version.Load()), nil)
				return
			}
		case <-timer.C:
			armed = false
			d.runPipeline()
		}
	}
}

// affectedBy reports whether an invalidation touches this document: its
// resolved schema was evicted, or it has no schema yet and a new file might
// now resolve.
func (d *docSession) affectedBy(evicted map[string]struct{}) bool {
	if !d.haveResolved || !d.resolvedOK {
		return true
	}
	_, hit := evicted[d.resolvedLoc]
	return hit
}

// runPipeline validates the current content, unless the lifecycle machine
// refuses to start a run (the session is closed). A result for a superseded
// version is discarded, never published.
func (d *docSession) runPipeline() {
	if !d.transition("start") {
		return
	}
	v := d.version.Load()
	diags := d.pipeline()
	d.transition("settle")
	if d.version.Load() != v {
		d.co.logger.Debug("discarding stale validation result",
			zap.String("uri", d.uri), zap.Int64("version", v))
		return
	}
	d.co.pub.Publish(d.uri, int32(v), diags)
}

// pipeline runs detect, parse, resolve, compile, validate for the current
// content and returns the diagnostics to publish. Every exit path returns a
// complete set; an empty set clears earlier findings.
func (d *docSession) pipeline() []Diagnostic {
	dialect := schemawatch.DetectDialect(schemawatch.DialectHint{
		LanguageID: d.languageID,
		Path:       d.path,
		Content:    d.content,
	})
	if dialect == schemawatch.DialectUnknown {
		return nil
	}

	root, perr := document.Parse(dialect, d.content)
	if perr != nil {
		return []Diagnostic{parseDiagnostic(perr)}
	}

	d.transition("resolve")
	loc, ok := d.resolveSchema(root)
	if !ok {
		return nil
	}

	entry, err := d.co.store.Compile(loc)
	if err != nil {
		return []Diagnostic{compileDiagnostic(err)}
	}

	d.transition("validate")
	violations := schema.Validate(root, entry, d.co.store)
	diags := make([]Diagnostic, 0, len(violations))
	for _, viol := range violations {
		diags = append(diags, violationDiagnostic(viol, root, d.content))
	}
	return diags
}

// resolveSchema memoizes resolver output for the current content and config
// generation. Saves reuse it; edits, config changes and schema-change
// revalidations resolve afresh.
func (d *docSession) resolveSchema(root *document.Node) (string, bool) {
	gen := d.co.resolver.Generation()
	hash := xxhash.Sum64(d.content)
	if d.haveResolved && d.resolvedGen == gen && d.resolvedHash == hash {
		return d.resolvedLoc, d.resolvedOK
	}
	loc, ok := d.co.resolver.Resolve(d.path, d.content, root)
	d.resolvedGen, d.resolvedHash = gen, hash
	d.resolvedLoc, d.resolvedOK = loc, ok
	d.haveResolved = true
	return loc, ok
}

func compileDiagnostic(err error) Diagnostic {
	code := schemawatch.CodeSchemaNotFound
	var serr *schema.Error
	if errors.As(err, &serr) && serr.Kind == schema.ErrParseFailure {
		code = schemawatch.CodeSchemaParseFailure
	}
	return Diagnostic{
		Span:     document.Span{End: document.Position{Column: 1}},
		Severity: schemawatch.SeverityError,
		Code:     code,
		Message:  fmt.Sprintf("Path /: %v", err),
		Source:   "/",
	}
}

func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
