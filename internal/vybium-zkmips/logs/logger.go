// Package logs builds the structured loggers used by the CLI and the
// execution engine.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Level is shared by every handler created through New.
var Level = new(slog.LevelVar)

// New returns a logger writing logfmt-style text to w. Extra handlers, such
// as a JSON file sink, receive the same records.
func New(w io.Writer, extra ...slog.Handler) *slog.Logger {
	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level}),
	}
	handlers = append(handlers, extra...)
	return slog.New(slogmulti.Fanout(handlers...))
}

// Verbose lowers the shared level to debug so per-cycle records are kept.
// A level already at or below debug is left alone.
func Verbose() {
	if Level.Level() > slog.LevelDebug {
		Level.Set(slog.LevelDebug)
	}
}

// JSONHandler returns a handler writing JSON records to w at the shared level.
func JSONHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps the CLI level names onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "crit":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Hex formats a word lazily as 0x-prefixed hex in log attributes.
type Hex uint32

func (h Hex) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("0x%08x", uint32(h)))
}
