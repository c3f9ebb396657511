package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	schemawatch "github.com/schemawatch/schemawatch"
	"github.com/schemawatch/schemawatch/document"
	"github.com/schemawatch/schemawatch/session"
)

func TestDecodeConfigBare(t *testing.T) {
	cfg, ok := decodeConfig(map[string]interface{}{
		"mappings": []interface{}{
			map[string]interface{}{"pattern": "*.yaml", "location": "/s.json"},
		},
	})
	require.True(t, ok)
	require.Len(t, cfg.Mappings, 1)
	assert.Equal(t, "*.yaml", cfg.Mappings[0].Pattern)
	assert.Equal(t, "/s.json", cfg.Mappings[0].Location)
}

func TestDecodeConfigNested(t *testing.T) {
	cfg, ok := decodeConfig(map[string]interface{}{
		"schemawatch": map[string]interface{}{
			"mappings": []interface{}{
				map[string]interface{}{"pattern": "a", "location": "b"},
			},
		},
	})
	require.True(t, ok)
	require.Len(t, cfg.Mappings, 1)
}

func TestDecodeConfigRejectsJunk(t *testing.T) {
	_, ok := decodeConfig(nil)
	assert.False(t, ok)
	_, ok = decodeConfig("not an object")
	assert.False(t, ok)
	_, ok = decodeConfig(map[string]interface{}{"unrelated": true})
	assert.False(t, ok)
}

func TestToProtocolDiagnostics(t *testing.T) {
	in := []session.Diagnostic{{
		Span: document.Span{
			Start: document.Position{Line: 2, Column: 4},
			End:   document.Position{Line: 2, Column: 9},
		},
		Severity: schemawatch.SeverityWarning,
		Code:     schemawatch.CodeFormat,
		Message:  "Path /when: bad date",
		Source:   "/when",
	}}
	out := toProtocolDiagnostics(in)
	require.Len(t, out, 1)
	d := out[0]
	assert.EqualValues(t, 2, d.Range.Start.Line)
	assert.EqualValues(t, 4, d.Range.Start.Character)
	assert.EqualValues(t, 9, d.Range.End.Character)
	require.NotNil(t, d.Severity)
	assert.EqualValues(t, 2, *d.Severity)
	require.NotNil(t, d.Source)
	assert.Equal(t, "/when", *d.Source)
	assert.Equal(t, "Path /when: bad date", d.Message)
}

func TestToProtocolDiagnosticsNeverNil(t *testing.T) {
	out := toProtocolDiagnostics(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestSetTraceTracksValue(t *testing.T) {
	s := New(Options{}, nil)
	t.Cleanup(s.Coordinator().Shutdown)

	assert.Equal(t, protocol.TraceValueOff, s.TraceValue())

	require.NoError(t, s.setTrace(nil, &protocol.SetTraceParams{Value: protocol.TraceValueVerbose}))
	assert.Equal(t, protocol.TraceValueVerbose, s.TraceValue())

	require.NoError(t, s.shutdown(nil))
	assert.Equal(t, protocol.TraceValueOff, s.TraceValue())
}
