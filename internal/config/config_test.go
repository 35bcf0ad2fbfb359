package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if !cfg.Files.AtomicWrites {
		t.Error("expected atomic writes on by default")
	}
	if cfg.Bridge.Enabled {
		t.Error("expected bridge off by default")
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != "" {
		t.Errorf("File = %q, want empty", res.File)
	}
	if !reflect.DeepEqual(res.Config, DefaultConfig()) {
		t.Errorf("config = %+v, want defaults", res.Config)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "# empty")
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.AppID != DefaultAppID {
		t.Fatalf("expected app_id %q, got %q", DefaultAppID, res.Config.AppID)
	}
}

func TestLoadFromPath_Overrides(t *testing.T) {
	path := writeConfig(t,
		"app_id: com.example.writer",
		"window:",
		"  title_match: Blog Writer",
		"dialogs:",
		"  open_title: Open draft",
		"files:",
		"  atomic_writes: false",
		"shell:",
		"  editor: code --wait",
		"  allowed_schemes: [https]",
		"bridge:",
		"  enabled: true",
		"  listen: 127.0.0.1:9000",
		"  allowed_origins: [\"http://localhost:5173\"]",
		"logging:",
		"  enabled: true",
		"  level: debug",
	)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.AppID != "com.example.writer" || cfg.Window.TitleMatch != "Blog Writer" {
		t.Errorf("unexpected app/window: %+v %+v", cfg.AppID, cfg.Window)
	}
	if cfg.Dialogs.OpenTitle != "Open draft" || cfg.Dialogs.SaveTitle != DefaultSaveTitle {
		t.Errorf("dialogs = %+v, want overridden open title and default save title", cfg.Dialogs)
	}
	if cfg.Files.AtomicWrites {
		t.Error("expected atomic_writes false")
	}
	if !reflect.DeepEqual(cfg.Shell.AllowedSchemes, []string{"https"}) {
		t.Errorf("allowed_schemes = %v, want [https]", cfg.Shell.AllowedSchemes)
	}
	if cfg.Bridge.Path != DefaultBridgePath || cfg.Bridge.Listen != "127.0.0.1:9000" {
		t.Errorf("bridge = %+v", cfg.Bridge)
	}
	if src := res.SourceOf("bridge.listen"); src.Kind != SourceFile || src.Line != 13 {
		t.Errorf("source of bridge.listen = %+v, want file line 13", src)
	}
	if src := res.SourceOf("dialogs.save_title"); src.Kind != SourceDefault {
		t.Errorf("source of dialogs.save_title = %+v, want default", src)
	}
}

func TestLoadFromPath_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "hotkey: Mod4-Mod1-t")
	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatal("expected unknown key to fail")
	}
	if !strings.Contains(err.Error(), "hotkey") {
		t.Errorf("error = %v, want mention of hotkey", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := writeConfig(t,
		"app_id: com.example.writer",
		"logging:",
		"  level: loud",
	)
	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "logging.level" {
		t.Errorf("path = %q, want logging.level", verr.Path)
	}
	if !strings.Contains(err.Error(), ":3:") {
		t.Errorf("error = %q, want line 3", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"empty app id", func(c *Config) { c.AppID = " " }, "app_id"},
		{"app id with slash", func(c *Config) { c.AppID = "../evil" }, "app_id"},
		{"empty open title", func(c *Config) { c.Dialogs.OpenTitle = "" }, "dialogs.open_title"},
		{"no schemes", func(c *Config) { c.Shell.AllowedSchemes = nil }, "shell.allowed_schemes"},
		{"bad scheme", func(c *Config) { c.Shell.AllowedSchemes = []string{"ht tp"} }, "shell.allowed_schemes"},
		{"bad listen", func(c *Config) { c.Bridge.Enabled = true; c.Bridge.Listen = "4317" }, "bridge.listen"},
		{"bad path", func(c *Config) { c.Bridge.Enabled = true; c.Bridge.Path = "invoke" }, "bridge.path"},
		{"negative files", func(c *Config) { c.Logging.MaxFiles = -1 }, "logging.max_files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Errorf("path = %q, want %q", verr.Path, tt.path)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Bridge.Listen = "garbage"
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled bridge should not validate listen: %v", err)
	}
}

func TestGetLoggingConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	got := DefaultConfig().GetLoggingConfig()
	if got.File != "/home/tester/.local/share/deskhost/commands.log" {
		t.Errorf("file = %q", got.File)
	}
	if got.MaxSizeMB != 10 || got.MaxFiles != 3 || got.PreviewLength != 80 || got.Level != "info" {
		t.Errorf("defaults = %+v", got)
	}

	var nilCfg *Config
	if nilCfg.GetLoggingConfig() != (LoggingConfig{}) {
		t.Error("nil config should return zero logging config")
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Window.TitleMatch = "Writer"
	cfg.Shell.Editor = "gedit"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(res.Config, cfg) {
		t.Errorf("loaded %+v, want %+v", res.Config, cfg)
	}
}

func TestDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv(PathEnv, "/etc/deskhost.yaml")
	got, err := DefaultConfigPath()
	if err != nil || got != "/etc/deskhost.yaml" {
		t.Fatalf("DefaultConfigPath() = %q, %v", got, err)
	}
}
