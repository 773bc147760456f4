package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFanout(t *testing.T) {
	var text, js bytes.Buffer
	Level.Set(slog.LevelDebug)
	defer Level.Set(slog.LevelInfo)

	l := New(&text, JSONHandler(&js))
	l.Debug("cycle", "pc", 3, "value", Hex(0x2a))

	require.Contains(t, text.String(), "msg=cycle")
	require.Contains(t, text.String(), "value=0x0000002a")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &rec))
	require.Equal(t, "cycle", rec["msg"])
	require.Equal(t, float64(3), rec["pc"])
}

func TestLevelFilters(t *testing.T) {
	var text bytes.Buffer
	Level.Set(slog.LevelWarn)
	defer Level.Set(slog.LevelInfo)

	New(&text).Info("hidden")
	require.Empty(t, text.String())
}

func TestVerboseKeepsDebugRecords(t *testing.T) {
	var text bytes.Buffer
	Level.Set(slog.LevelInfo)
	defer Level.Set(slog.LevelInfo)

	l := New(&text)
	l.Debug("dropped")
	require.Empty(t, text.String())

	Verbose()
	l.Debug("cycle", "pc", 1)
	require.Contains(t, text.String(), "msg=cycle")
	require.Equal(t, slog.LevelDebug, Level.Level())

	Level.Set(slog.LevelDebug - 4)
	Verbose()
	require.Equal(t, slog.LevelDebug-4, Level.Level())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	require.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
