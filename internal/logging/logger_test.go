package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("also hidden")
	assert.Empty(t, buf.String())

	l.Warn("visible warning")
	assert.Contains(t, buf.String(), "[WARN] visible warning")
}

func TestLoggerFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	l.Info("request dispatched", "cat", "DIR", "type", "ADD")
	out := buf.String()
	assert.Contains(t, out, "cat=DIR")
	assert.Contains(t, out, "type=ADD")
}

func TestLoggerPrintfAndFStyle(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	l.Errorf("upd.dir: %s", "name collision")
	assert.Contains(t, buf.String(), "upd.dir: name collision")

	buf.Reset()
	l.Printf("upd.factory: %s", "unknown driver")
	assert.Contains(t, buf.String(), "[INFO] upd.factory: unknown driver")
}

func TestDefaultLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	assert.Contains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	Info("info message")
	assert.Contains(t, buf.String(), "info message")

	buf.Reset()
	Warn("warn message")
	assert.Contains(t, buf.String(), "warn message")

	buf.Reset()
	Error("error message")
	assert.Contains(t, buf.String(), "error message")
}
