package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	return slog.New(newPrettyHandler(buf, levelVar))
}

func TestPrettyHandlerRendersComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestLogger(&buf, slog.LevelInfo), "daemon")

	logger.Info("api server listening", String("address", "127.0.0.1:7979"))

	out := buf.String()
	if !strings.Contains(out, " INFO daemon: api server listening") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "address=127.0.0.1:7979") {
		t.Fatalf("expected address attr in output: %q", out)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo)

	logger.Warn("download failed", String("detail", "no such file"))

	out := buf.String()
	if !strings.Contains(out, `detail="no such file"`) {
		t.Fatalf("expected quoted attr value, got %q", out)
	}
	if !strings.Contains(out, " WARN ") {
		t.Fatalf("expected WARN level label, got %q", out)
	}
}

func TestPrettyHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelWarn)

	logger.Info("suppressed")
	logger.Error("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info line should be suppressed: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("error line missing: %q", out)
	}
}

func TestPrettyHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo)

	logger.Info("upload finished", Group("provider", String("name", "filemoon"), String("filecode", "abc123")))

	out := buf.String()
	if !strings.Contains(out, "provider.name=filemoon") || !strings.Contains(out, "provider.filecode=abc123") {
		t.Fatalf("expected flattened group attrs, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.input); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "permavid.log")
	logger, err := New(Options{Level: "info", Format: "json", FilePath: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("file sink check")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file sink check") {
		t.Fatalf("log file missing entry: %q", string(data))
	}
	if !strings.Contains(string(data), `"msg"`) {
		t.Fatalf("json handler should use msg key: %q", string(data))
	}
}

func TestCleanupOldLogsPrunesByAge(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "permavid-2024.log")
	newPath := filepath.Join(dir, "permavid.log")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	CleanupOldLogs(NewNop(), 7, RetentionTarget{Dir: dir, Pattern: "permavid*.log", Exclude: []string{newPath}})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected stale log pruned, stat err=%v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("excluded log should remain: %v", err)
	}
}
