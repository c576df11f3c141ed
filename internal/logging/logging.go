// Package logging configures zerolog for the panel and headless commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxLines bounds the in-memory log pane.
const DefaultMaxLines = 500

// Options selects level, format and destinations.
type Options struct {
	Level  string
	Format string
	File   string
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger writing to out as JSON or, with format "text", as console lines.
func New(out io.Writer, opts Options) zerolog.Logger {
	if opts.Format == "text" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
}

// NewPanel builds the interactive logger: plain console lines into buf, and
// JSON into the log file when one is configured. The returned closer closes the file.
func NewPanel(buf *Buffer, opts Options) (zerolog.Logger, io.Closer, error) {
	writers := []io.Writer{zerolog.ConsoleWriter{Out: buf, NoColor: true, TimeFormat: "15:04:05"}}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Buffer keeps the most recent log lines for display.
type Buffer struct {
	mu       sync.Mutex
	lines    []string
	limit    int
	partial  string
	onChange func()
}

// NewBuffer creates a buffer holding up to limit lines.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultMaxLines
	}
	return &Buffer{limit: limit}
}

// OnChange registers fn to run after new lines arrive or the buffer is cleared.
func (b *Buffer) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Write implements io.Writer, splitting input into lines.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	text := b.partial + string(p)
	parts := strings.Split(text, "\n")
	b.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		b.lines = append(b.lines, strings.TrimRight(line, "\r"))
	}
	if over := len(b.lines) - b.limit; over > 0 {
		b.lines = append([]string(nil), b.lines[over:]...)
	}
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Clear drops every buffered line.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.lines = nil
	b.partial = ""
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}
