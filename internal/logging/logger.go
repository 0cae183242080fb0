package logging

import (
	"io"
	"log/slog"
	"os"
)

const redacted = "[REDACTED]"

// sensitiveKeys are attribute names whose values are never written.
var sensitiveKeys = map[string]struct{}{
	"token":      {},
	"tokens":     {},
	"key":        {},
	"salt":       {},
	"plaintext":  {},
	"note":       {},
	"image":      {},
	"ciphertext": {},
}

// New creates a JSON slog logger on stdout at the provided level. If the
// level string is invalid it defaults to info.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with a caller chosen destination. The CLI logs to
// stderr so command output stays clean.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: redact})
	return slog.New(handler)
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[a.Key]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}
