// Package audit records one line per executed command to a rotating log
// file.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// LogLevel defines the logging verbosity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ActionType groups commands in the log.
type ActionType string

const (
	ActionFileRead   ActionType = "FILE-READ"
	ActionFileWrite  ActionType = "FILE-WRITE"
	ActionFileExists ActionType = "FILE-EXISTS"
	ActionDialogOpen ActionType = "DIALOG-OPEN"
	ActionDialogSave ActionType = "DIALOG-SAVE"
	ActionWindow     ActionType = "WINDOW"
	ActionNotify     ActionType = "NOTIFY"
	ActionShellOpen  ActionType = "SHELL-OPEN"
	ActionDirLookup  ActionType = "DIR-LOOKUP"
	ActionIntrospect ActionType = "INTROSPECT"
	ActionUnknown    ActionType = "UNKNOWN"
)

// actionLevel returns the log level for a successful action.
func actionLevel(action ActionType) LogLevel {
	switch action {
	case ActionFileRead, ActionFileExists, ActionDirLookup, ActionIntrospect:
		return LevelDebug
	case ActionUnknown:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// LogConfig holds configuration for the audit logger.
type LogConfig struct {
	Enabled        bool
	Level          LogLevel
	FilePath       string
	MaxSizeMB      int
	MaxFiles       int
	IncludeContent bool
	PreviewLength  int
}

// Entry describes one executed command.
type Entry struct {
	Action   ActionType
	Command  string
	Duration time.Duration
	Err      error
	Details  map[string]interface{}
}

// Logger handles command logging with file rotation.
type Logger struct {
	mu          sync.Mutex
	file        *os.File
	config      LogConfig
	currentSize int64
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LogConfig) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{config: cfg}, nil
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &Logger{
		file:        f,
		config:      cfg,
		currentSize: stat.Size(),
	}, nil
}

// IncludeContent reports whether full content values may be logged.
func (l *Logger) IncludeContent() bool {
	return l != nil && l.config.IncludeContent
}

// DefaultPreviewLength is used when no preview length is configured.
const DefaultPreviewLength = 80

// Preview shortens s to the configured preview length.
func (l *Logger) Preview(s string) string {
	n := DefaultPreviewLength
	if l != nil && l.config.PreviewLength > 0 {
		n = l.config.PreviewLength
	}
	return Truncate(s, n)
}

// Log records a command to the log file. Failed commands are logged at error
// level.
func (l *Logger) Log(e Entry) {
	if l == nil || !l.config.Enabled {
		return
	}

	level := actionLevel(e.Action)
	if e.Err != nil {
		level = LevelError
	}
	if level < l.config.Level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	maxBytes := int64(l.config.MaxSizeMB) * 1024 * 1024
	if maxBytes > 0 && l.currentSize >= maxBytes {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
		if l.file == nil {
			return
		}
	}

	n, err := l.file.WriteString(formatEntry(time.Now(), e))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log entry: %v\n", err)
		return
	}
	l.currentSize += int64(n)
}

func formatEntry(now time.Time, e Entry) string {
	var sb strings.Builder
	sb.WriteString(now.Format("2006-01-02 15:04:05"))
	sb.WriteString(" [")
	sb.WriteString(string(e.Action))
	sb.WriteString("]")
	sb.WriteString(" command=")
	sb.WriteString(e.Command)
	if e.Err != nil {
		sb.WriteString(" status=error")
	} else {
		sb.WriteString(" status=ok")
	}
	sb.WriteString(fmt.Sprintf(" duration_ms=%d", e.Duration.Milliseconds()))

	details := e.Details
	if e.Err != nil {
		details = make(map[string]interface{}, len(e.Details)+1)
		for k, v := range e.Details {
			details[k] = v
		}
		details["error"] = e.Err.Error()
	}

	// Sorted for stable output.
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch val := details[k].(type) {
		case string:
			sb.WriteString(fmt.Sprintf(" %s=%q", k, val))
		default:
			sb.WriteString(fmt.Sprintf(" %s=%v", k, val))
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// Close closes the logger and releases resources.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// rotate shifts deskhost.log -> deskhost.log.1 -> deskhost.log.2 and so on,
// keeping MaxFiles rotated files.
func (l *Logger) rotate() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	basePath := l.config.FilePath
	for i := l.config.MaxFiles; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", basePath, i)
		newPath := fmt.Sprintf("%s.%d", basePath, i+1)
		if i == l.config.MaxFiles {
			os.Remove(oldPath)
		} else {
			os.Rename(oldPath, newPath)
		}
	}

	if l.config.MaxFiles > 0 {
		if err := os.Rename(basePath, basePath+".1"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	} else if err := os.Remove(basePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}

	f, err := os.OpenFile(basePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	l.file = f
	l.currentSize = 0
	return nil
}

// ParseLogLevel converts a string to LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Truncate returns a preview of s cut to at most maxLen bytes on a rune
// boundary.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
