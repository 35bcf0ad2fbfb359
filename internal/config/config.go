package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAppID      = "com.inspiration-blog-writer.app"
	DefaultOpenTitle  = "Open File"
	DefaultSaveTitle  = "Save File"
	DefaultListen     = "127.0.0.1:4317"
	DefaultBridgePath = "/invoke"
)

// WindowConfig selects the window that commands act on when no explicit
// window id is given.
type WindowConfig struct {
	// TitleMatch is a case-insensitive substring of the application window
	// title. Empty means the active window.
	TitleMatch string `yaml:"title_match,omitempty"`
}

type DialogsConfig struct {
	OpenTitle string `yaml:"open_title"`
	SaveTitle string `yaml:"save_title"`
}

type FilesConfig struct {
	// AtomicWrites writes through a temp file and rename.
	AtomicWrites bool `yaml:"atomic_writes"`
}

type ShellConfig struct {
	// Editor overrides $VISUAL/$EDITOR for open_in_default_editor, e.g. "code --wait".
	Editor string `yaml:"editor,omitempty"`
	// AllowedSchemes limits open_url.
	AllowedSchemes []string `yaml:"allowed_schemes"`
	// FileManager overrides the D-Bus ShowItems call, e.g. "nautilus".
	FileManager string `yaml:"file_manager,omitempty"`
}

// BridgeConfig configures the websocket channel used by the web front-end.
type BridgeConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Listen         string   `yaml:"listen"`
	Path           string   `yaml:"path"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	// TokenFile holds the shared secret clients must present
	// (default: $XDG_RUNTIME_DIR/deskhost-bridge.token, created on start).
	TokenFile string `yaml:"token_file,omitempty"`
	// AllowAnonymous accepts clients without a token. Any local process
	// can then read and write the user's files through the bridge.
	AllowAnonymous bool `yaml:"allow_anonymous,omitempty"`
}

// LoggingConfig configures the command audit log.
type LoggingConfig struct {
	// Enabled turns the audit log on/off
	Enabled bool `yaml:"enabled,omitempty"`
	// Level controls logging verbosity: debug, info, warn, error
	Level string `yaml:"level,omitempty"`
	// File is the log file path (default: ~/.local/share/deskhost/commands.log)
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the size at which the file is rotated (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxFiles is the number of rotated files kept (default: 3)
	MaxFiles int `yaml:"max_files,omitempty"`
	// IncludeContent logs full file contents instead of a preview
	IncludeContent bool `yaml:"include_content,omitempty"`
	// PreviewLength is the preview size in bytes (default: 80)
	PreviewLength int `yaml:"preview_length,omitempty"`
}

// Config is the effective deskhost configuration.
type Config struct {
	AppID   string        `yaml:"app_id"`
	Display string        `yaml:"display,omitempty"`
	Window  WindowConfig  `yaml:"window"`
	Dialogs DialogsConfig `yaml:"dialogs"`
	Files   FilesConfig   `yaml:"files"`
	Shell   ShellConfig   `yaml:"shell"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		AppID: DefaultAppID,
		Dialogs: DialogsConfig{
			OpenTitle: DefaultOpenTitle,
			SaveTitle: DefaultSaveTitle,
		},
		Files: FilesConfig{AtomicWrites: true},
		Shell: ShellConfig{
			AllowedSchemes: []string{"http", "https", "mailto"},
		},
		Bridge: BridgeConfig{
			Listen: DefaultListen,
			Path:   DefaultBridgePath,
		},
	}
}

// GetLoggingConfig returns the logging configuration with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	if c == nil {
		return LoggingConfig{}
	}
	cfg := c.Logging
	if cfg.File == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = os.Getenv("HOME")
		}
		if home == "" {
			home = "."
		}
		cfg.File = filepath.Join(home, ".local/share/deskhost/commands.log")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 3
	}
	if cfg.PreviewLength == 0 {
		cfg.PreviewLength = 80
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return cfg
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments
// from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal renders the effective config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.AppID) == "" {
		return &ValidationError{Path: "app_id", Err: fmt.Errorf("app_id is required")}
	}
	if strings.ContainsAny(c.AppID, `/\`) || c.AppID == "." || c.AppID == ".." {
		return &ValidationError{Path: "app_id", Err: fmt.Errorf("app_id must be a single path component")}
	}
	if strings.TrimSpace(c.Dialogs.OpenTitle) == "" {
		return &ValidationError{Path: "dialogs.open_title", Err: fmt.Errorf("open_title must not be empty")}
	}
	if strings.TrimSpace(c.Dialogs.SaveTitle) == "" {
		return &ValidationError{Path: "dialogs.save_title", Err: fmt.Errorf("save_title must not be empty")}
	}
	if len(c.Shell.AllowedSchemes) == 0 {
		return &ValidationError{Path: "shell.allowed_schemes", Err: fmt.Errorf("allowed_schemes must not be empty")}
	}
	for _, scheme := range c.Shell.AllowedSchemes {
		if !validScheme(scheme) {
			return &ValidationError{Path: "shell.allowed_schemes", Err: fmt.Errorf("invalid scheme %q", scheme)}
		}
	}
	if c.Bridge.Enabled {
		if _, _, err := net.SplitHostPort(c.Bridge.Listen); err != nil {
			return &ValidationError{Path: "bridge.listen", Err: fmt.Errorf("listen must be host:port: %w", err)}
		}
		if !strings.HasPrefix(c.Bridge.Path, "/") {
			return &ValidationError{Path: "bridge.path", Err: fmt.Errorf("path must start with /")}
		}
		if c.Bridge.TokenFile != "" && !filepath.IsAbs(c.Bridge.TokenFile) {
			return &ValidationError{Path: "bridge.token_file", Err: fmt.Errorf("token_file must be an absolute path")}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
	}
	if c.Logging.MaxSizeMB < 0 {
		return &ValidationError{Path: "logging.max_size_mb", Err: fmt.Errorf("max_size_mb must be >= 0")}
	}
	if c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging.max_files", Err: fmt.Errorf("max_files must be >= 0")}
	}
	if c.Logging.PreviewLength < 0 {
		return &ValidationError{Path: "logging.preview_length", Err: fmt.Errorf("preview_length must be >= 0")}
	}
	return nil
}

// validScheme follows the RFC 3986 scheme grammar.
func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
