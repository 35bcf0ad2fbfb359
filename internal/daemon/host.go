// Package daemon wires configuration, gateways and the window backend into
// the long-running command host.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/deskhost/internal/audit"
	"github.com/1broseidon/deskhost/internal/commands"
	"github.com/1broseidon/deskhost/internal/config"
	"github.com/1broseidon/deskhost/internal/dialog"
	"github.com/1broseidon/deskhost/internal/fileaccess"
	"github.com/1broseidon/deskhost/internal/platform"
	"github.com/1broseidon/deskhost/internal/shell"
	"github.com/1broseidon/deskhost/internal/window"
)

// Options are the process-level collaborators of a Host.
type Options struct {
	Picker dialog.Picker
	Runner shell.Runner
	Audit  *audit.Logger
	Logger *slog.Logger
}

// Host owns the effective config and window backend and serves commands
// through a dispatcher rebuilt whenever either changes. In-flight commands
// finish on the dispatcher they started with.
type Host struct {
	opts Options

	mu           sync.Mutex // guards cfg, backend, closeBackend
	cfg          *config.Config
	backend      platform.Backend
	closeBackend func()

	// toggleMu outlives dispatcher rebuilds so an in-flight toggle and one
	// on a fresh dispatcher never interleave.
	toggleMu sync.Mutex

	current atomic.Pointer[commands.Dispatcher]
}

// NewHost creates a host without a window backend; window commands fail
// with WindowError until SetBackend is called.
func NewHost(cfg *config.Config, opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Host{opts: opts, cfg: cfg}
	h.mu.Lock()
	h.rebuildLocked()
	h.mu.Unlock()
	return h
}

// Dispatch runs a command on the current dispatcher.
func (h *Host) Dispatch(ctx context.Context, name string, raw json.RawMessage) commands.Result {
	return h.current.Load().Dispatch(ctx, name, raw)
}

// Names lists the commands the host serves.
func (h *Host) Names() []string {
	return h.current.Load().Names()
}

// Config returns the effective config.
func (h *Host) Config() *config.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// HasBackend reports whether a window backend is connected.
func (h *Host) HasBackend() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backend != nil
}

// Reload swaps in cfg. When the display changes the current backend is
// dropped and true is returned so the caller can reconnect.
func (h *Host) Reload(cfg *config.Config) (displayChanged bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	displayChanged = cfg.Display != h.cfg.Display
	h.cfg = cfg
	if displayChanged {
		h.dropBackendLocked()
	}
	h.rebuildLocked()
	h.opts.Logger.Info("config applied",
		"app_id", cfg.AppID,
		"title_match", cfg.Window.TitleMatch,
		"display_changed", displayChanged)
	return displayChanged
}

// SetBackend installs a connected backend. closer, if non-nil, is called
// when the backend is replaced or the host is closed.
func (h *Host) SetBackend(b platform.Backend, closer func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropBackendLocked()
	h.backend = b
	h.closeBackend = closer
	h.rebuildLocked()
}

// CheckBackend pings the attached backend and drops it when the window
// system no longer answers within timeout, so the reconnector can attach a
// fresh one. It reports whether a backend is attached afterwards.
func (h *Host) CheckBackend(timeout time.Duration) bool {
	h.mu.Lock()
	b := h.backend
	h.mu.Unlock()
	if b == nil {
		return false
	}
	p, ok := b.(platform.Pinger)
	if !ok {
		return true
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.Ping() }()
	var err error
	select {
	case err = <-errCh:
	case <-time.After(timeout):
		err = fmt.Errorf("no reply within %s", timeout)
	}
	if err == nil {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.backend != b {
		return h.backend != nil
	}
	h.dropBackendLocked()
	h.rebuildLocked()
	h.opts.Logger.Warn("window backend lost", "error", err)
	return false
}

// Close disconnects the backend.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropBackendLocked()
}

func (h *Host) dropBackendLocked() {
	if h.closeBackend != nil {
		h.closeBackend()
	}
	h.backend = nil
	h.closeBackend = nil
}

func (h *Host) rebuildLocked() {
	h.current.Store(BuildDispatcher(h.cfg, h.backend, &h.toggleMu, h.opts))
}

// BuildDispatcher assembles the gateways described by cfg. backend may be
// nil. toggleMu is handed to the window gateway.
func BuildDispatcher(cfg *config.Config, backend platform.Backend, toggleMu *sync.Mutex, opts Options) *commands.Dispatcher {
	files := fileaccess.NewGateway(cfg.AppID, cfg.Files.AtomicWrites)
	picker := opts.Picker
	if picker == nil {
		picker = dialog.NativePicker{}
	}
	runner := opts.Runner
	if runner == nil {
		runner = shell.ExecRunner{}
	}

	return commands.New(commands.Gateways{
		Files:   files,
		Dialogs: dialog.NewGateway(picker, files, cfg.Dialogs.OpenTitle, cfg.Dialogs.SaveTitle),
		Windows: window.NewGateway(backend, cfg.Window.TitleMatch, toggleMu),
		Shell: shell.NewGateway(runner, shell.Options{
			BundleID:       cfg.AppID,
			AllowedSchemes: cfg.Shell.AllowedSchemes,
			Editor:         cfg.Shell.Editor,
			FileManager:    cfg.Shell.FileManager,
		}),
	}, opts.Audit)
}

// OpenAuditLog creates the command audit logger described by cfg. A
// disabled log returns a no-op logger.
func OpenAuditLog(cfg *config.Config) (*audit.Logger, error) {
	logCfg := cfg.GetLoggingConfig()
	return audit.NewLogger(audit.LogConfig{
		Enabled:        logCfg.Enabled,
		Level:          audit.ParseLogLevel(logCfg.Level),
		FilePath:       logCfg.File,
		MaxSizeMB:      logCfg.MaxSizeMB,
		MaxFiles:       logCfg.MaxFiles,
		IncludeContent: logCfg.IncludeContent,
		PreviewLength:  logCfg.PreviewLength,
	})
}
