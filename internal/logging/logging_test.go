package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBufferSplitsAndTrims(t *testing.T) {
	b := NewBuffer(2)
	changes := 0
	b.OnChange(func() { changes++ })

	if _, err := b.Write([]byte("one\ntw")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := b.Write([]byte("o\nthree\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := b.Lines()
	if len(lines) != 2 || lines[0] != "two" || lines[1] != "three" {
		t.Fatalf("unexpected lines %q", lines)
	}
	b.Clear()
	if len(b.Lines()) != 0 {
		t.Fatalf("expected empty buffer")
	}
	if changes != 3 {
		t.Fatalf("expected 3 change notifications, got %d", changes)
	}
}

func TestNewPanelWritesBufferAndFile(t *testing.T) {
	buf := NewBuffer(10)
	path := filepath.Join(t.TempDir(), "logs", "fanpanel.log")
	logger, closer, err := NewPanel(buf, Options{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("new panel logger: %v", err)
	}
	logger.Info().Msg("hidden")
	logger.Warn().Msg("Device disconnected")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := buf.Lines()
	if len(lines) != 1 || !strings.Contains(lines[0], "WRN") || !strings.Contains(lines[0], "Device disconnected") {
		t.Fatalf("unexpected pane lines %q", lines)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"level":"warn"`) {
		t.Fatalf("expected JSON warning in file, got %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != zerolog.DebugLevel || ParseLevel("bogus") != zerolog.InfoLevel {
		t.Fatalf("unexpected level mapping")
	}
}
