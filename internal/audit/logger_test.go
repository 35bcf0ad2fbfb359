package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, cfg LogConfig) *Logger {
	t.Helper()
	cfg.Enabled = true
	if cfg.FilePath == "" {
		cfg.FilePath = filepath.Join(t.TempDir(), "logs", "deskhost.log")
	}
	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(data)
}

func TestLog_FormatsSortedDetails(t *testing.T) {
	l := newTestLogger(t, LogConfig{Level: LevelDebug, MaxSizeMB: 1, MaxFiles: 2})
	l.Log(Entry{
		Action:   ActionFileWrite,
		Command:  "write_file",
		Duration: 12 * time.Millisecond,
		Details:  map[string]interface{}{"path": "/tmp/note.md", "content_len": 7},
	})

	got := readLog(t, l.config.FilePath)
	want := `[FILE-WRITE] command=write_file status=ok duration_ms=12 content_len=7 path="/tmp/note.md"` + "\n"
	if !strings.HasSuffix(got, want) {
		t.Errorf("entry = %q, want suffix %q", got, want)
	}
}

func TestLog_ErrorsAlwaysAboveInfo(t *testing.T) {
	l := newTestLogger(t, LogConfig{Level: LevelWarn, MaxSizeMB: 1})
	l.Log(Entry{Action: ActionFileRead, Command: "read_file"})
	l.Log(Entry{Action: ActionWindow, Command: "minimize_window"})
	l.Log(Entry{Action: ActionFileRead, Command: "read_file", Err: errors.New("Failed to read file: boom")})

	got := readLog(t, l.config.FilePath)
	if strings.Count(got, "\n") != 1 {
		t.Fatalf("log = %q, want exactly the failed entry", got)
	}
	if !strings.Contains(got, `status=error`) || !strings.Contains(got, `error="Failed to read file: boom"`) {
		t.Errorf("log = %q, want error details", got)
	}
}

func TestLog_Rotates(t *testing.T) {
	l := newTestLogger(t, LogConfig{Level: LevelDebug, MaxSizeMB: 1, MaxFiles: 2})
	l.currentSize = 1024 * 1024

	l.Log(Entry{Action: ActionNotify, Command: "show_notification"})

	if _, err := os.Stat(l.config.FilePath + ".1"); err != nil {
		t.Fatalf("expected rotated file: %v", err)
	}
	if got := readLog(t, l.config.FilePath); strings.Count(got, "\n") != 1 {
		t.Errorf("new log = %q, want one entry", got)
	}
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	l, err := NewLogger(LogConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	l.Log(Entry{Action: ActionWindow, Command: "close_window"})
	if err := l.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	var nilLogger *Logger
	nilLogger.Log(Entry{Action: ActionWindow})
	if nilLogger.IncludeContent() {
		t.Error("nil logger IncludeContent() = true")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"héllo", 2, "h..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": LevelDebug, "INFO": LevelInfo, "warning": LevelWarn, "error": LevelError, "": LevelInfo,
	} {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
