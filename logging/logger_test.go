package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Logger = (*StructuredLogger)(nil)
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = NoOpLogger{}
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("verbose"))
}

func TestStructuredLogger_ScopedAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf})

	scoped := base.WithComponent("team").WithSession("s1", "r1").WithContext("agent", "primary")
	scoped.Info("team.turn.start", "turn", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "team.turn.start", rec["msg"])
	assert.Equal(t, "team", rec["component"])
	assert.Equal(t, "s1", rec["session_id"])
	assert.Equal(t, "r1", rec["run_id"])
	assert.Equal(t, "primary", rec["agent"])
	assert.EqualValues(t, 1, rec["turn"])

	// the base logger must not inherit scoped attributes
	buf.Reset()
	base.Info("plain")
	rec = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "component")
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestStructuredLogger_LogTurnFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	l.LogTurn("critic", 2, 10*time.Millisecond, false, errors.New("boom"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Agent turn failed", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "critic", rec["agent"])
	assert.Equal(t, "boom", rec["error"])
}

func TestForComponentAndSession(t *testing.T) {
	var buf bytes.Buffer
	var l Logger = NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	ForSession(ForComponent(l, "relay"), "demo", "run-1").Info("relay.send.start")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "relay", rec["component"])
	assert.Equal(t, "demo", rec["session_id"])
	assert.Equal(t, "run-1", rec["run_id"])

	assert.Equal(t, NoOpLogger{}, ForComponent(nil, "x"))
	assert.Equal(t, NoOpLogger{}, ForSession(NoOpLogger{}, "s", "r"))
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}
