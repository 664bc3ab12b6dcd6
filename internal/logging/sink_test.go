package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestSinkWritesLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(zerolog.New(&buf))

	sink.Info("probed", "path", "/a.mp4", "seconds", 4.5)
	sink.Warn("drift", "frames", 2)
	sink.Error("render failed", "path", "/out.mp4")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "probed", lines[0]["message"])
	assert.Equal(t, "/a.mp4", lines[0]["path"])
	assert.InDelta(t, 4.5, lines[0]["seconds"], 1e-9)

	assert.Equal(t, "warn", lines[1]["level"])
	assert.InDelta(t, 2, lines[1]["frames"], 1e-9)

	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "/out.mp4", lines[2]["path"])
}

func TestSinkOddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	NewSink(zerolog.New(&buf)).Info("odd", "dangling")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "(MISSING)", lines[0]["dangling"])
}

func TestNopSink(t *testing.T) {
	s := Nop()
	s.Info("x")
	s.Warn("x", "k", 1)
	s.Error("x")
}

func TestNewLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.Info().Str("k", "v").Msg("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "v", lines[0]["k"])
	assert.Contains(t, lines[0], "time")
}
