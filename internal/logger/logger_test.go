package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"proctorcam/internal/config"
)

func TestNew_WritesLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Info("frame %d", 1)
	l.Warning("detector slow")
	l.Error("camera gone: %v", os.ErrNotExist)

	out := buf.String()
	for _, want := range []string{"INFO", "frame 1", "WARNING", "detector slow", "ERROR", "camera gone"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestNewLogger_FilesAndClean(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(&config.Config{LogDirectory: dir})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l.Close()

	l.Warning("oracle timeout")

	path := filepath.Join(dir, WarningFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read warning log: %v", err)
	}
	if !strings.Contains(string(data), "oracle timeout") {
		t.Errorf("Expected warning log to contain entry, got %q", data)
	}

	if err := l.CleanLogs(WarningFile); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("Expected truncated file, got %d bytes", info.Size())
	}
}

func TestCleanLogs_RejectsUnknownFile(t *testing.T) {
	l := Discard()
	if err := l.CleanLogs("../../etc/passwd"); err == nil {
		t.Error("Expected unknown file to be rejected")
	}
}
