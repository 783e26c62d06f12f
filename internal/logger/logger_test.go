package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("json", "warn", &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("payment rejected", "payment_id", "mock-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "payment rejected", entry["msg"])
	assert.Equal(t, "mock-1", entry["payment_id"])
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("pretty", "debug", &buf)
	require.NoError(t, err)

	log.With("component", "gateway").WithGroup("payment").Debug("transition", "from", "created", "to", "completed")

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "transition")
	assert.Contains(t, out, "component"+reset+"=gateway")
	assert.Contains(t, out, "payment.from"+reset+"=created")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.Debug("nope")
	assert.Empty(t, buf.String())

	log.Info("yes")
	assert.Contains(t, buf.String(), "yes")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("json", "chatty", &bytes.Buffer{})
	assert.Error(t, err)
}
