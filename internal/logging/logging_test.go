package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogWriterFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcwatch.log")
	var stdout bytes.Buffer

	w := logWriter(Config{File: FileConfig{Path: path}}, &stdout)
	logger := zerolog.New(w)
	logger.Info().Str("component", "test").Msg("hello")

	if !strings.Contains(stdout.String(), `"message":"hello"`) {
		t.Fatalf("stdout should receive JSON line, got %q", stdout.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Fatalf("file should receive JSON line, got %q", string(data))
	}
}

func TestLogWriterConsole(t *testing.T) {
	var stdout bytes.Buffer
	w := logWriter(Config{Format: "console"}, &stdout)
	if _, ok := w.(zerolog.ConsoleWriter); !ok {
		t.Fatalf("console format should use ConsoleWriter, got %T", w)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	if got := NewLogger(Config{Level: "debug"}).GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", got)
	}
	if got := NewLogger(Config{Level: "nonsense"}).GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("invalid level should fall back to info, got %s", got)
	}
}
