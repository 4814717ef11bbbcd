package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
	}{
		{name: "debug lower", input: "debug", want: LevelDebug},
		{name: "info upper", input: "INFO", want: LevelInfo},
		{name: "warn mixed", input: "WaRn", want: LevelWarn},
		{name: "error", input: "error", want: LevelError},
		{name: "fatal", input: "fatal", want: LevelFatal},
		{name: "trim spaces", input: "  debug  ", want: LevelDebug},
		{name: "unknown fallback", input: "verbose", want: LevelInfo},
		{name: "empty fallback", input: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Fatalf("ParseLevel(%q)=%v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LevelWarn)

	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden 1") {
		t.Fatalf("info entry should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "shown 2") {
		t.Fatalf("warn entry missing, got %q", out)
	}
	if !strings.Contains(out, "logger_level_test.go:") {
		t.Fatalf("caller location missing, got %q", out)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LevelError)
	logger.SetLevel(LevelDebug)
	logger.Debug("now visible")

	if !strings.Contains(buf.String(), "[DEBUG] ") {
		t.Fatalf("debug entry missing, got %q", buf.String())
	}
}

func TestFileLogger_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "srs.log")

	logger, err := NewFileLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	logger.Info("first %s", "entry")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logger, err = NewFileLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	logger.Debug("filtered")
	logger.Error("second entry")
	_ = logger.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(content)
	if !strings.Contains(out, "first entry") || !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "second entry") {
		t.Fatalf("entries missing, got %q", out)
	}
	if strings.Contains(out, "filtered") {
		t.Fatalf("debug entry should be filtered, got %q", out)
	}
}

func TestSetLogger_ReplacesGlobal(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	var buf bytes.Buffer
	SetLogger(NewLoggerTo(&buf, LevelDebug))
	Info("routed %d", 3)

	if !strings.Contains(buf.String(), "routed 3") {
		t.Fatalf("global entry missing, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "logger_level_test.go:") {
		t.Fatalf("caller location should point at the caller, got %q", buf.String())
	}
}
