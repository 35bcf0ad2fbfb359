package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/commands"
	"github.com/1broseidon/deskhost/internal/config"
	"github.com/1broseidon/deskhost/internal/dialog"
	"github.com/1broseidon/deskhost/internal/platform"
)

type fakeBackend struct {
	mu        sync.Mutex
	active    platform.WindowID
	byTitle   map[string]platform.WindowID
	minimized []platform.WindowID
	queries   []string
	pingErr   error
}

func (f *fakeBackend) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeBackend) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeBackend) ActiveWindow() (platform.WindowID, error) { return f.active, nil }

func (f *fakeBackend) FindWindowByTitle(substring string) (platform.WindowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, substring)
	if id, ok := f.byTitle[substring]; ok {
		return id, nil
	}
	return 0, errors.New("no window matches")
}

func (f *fakeBackend) Exists(platform.WindowID) bool               { return true }
func (f *fakeBackend) IsMaximized(platform.WindowID) (bool, error) { return false, nil }
func (f *fakeBackend) SetMaximized(platform.WindowID, bool) error  { return nil }
func (f *fakeBackend) Close(platform.WindowID) error               { return nil }
func (f *fakeBackend) SetTitle(platform.WindowID, string) error    { return nil }

func (f *fakeBackend) Minimize(id platform.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minimized = append(f.minimized, id)
	return nil
}

type cancelPicker struct {
	titles []string
}

func (p *cancelPicker) Open(req dialog.Request) (string, error) {
	p.titles = append(p.titles, req.Title)
	return "", dialog.ErrCancelled
}
func (p *cancelPicker) Save(req dialog.Request) (string, error)      { return p.Open(req) }
func (p *cancelPicker) Directory(req dialog.Request) (string, error) { return p.Open(req) }

type nopRunner struct{}

func (nopRunner) Run(context.Context, string, ...string) error   { return nil }
func (nopRunner) Start(context.Context, string, ...string) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHost(cfg *config.Config, picker dialog.Picker) *Host {
	if picker == nil {
		picker = &cancelPicker{}
	}
	return NewHost(cfg, Options{Picker: picker, Runner: nopRunner{}, Logger: quietLogger()})
}

func TestHost_WindowCommandsWithoutBackend(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	res := h.Dispatch(context.Background(), commands.MinimizeWindow, json.RawMessage(`{}`))
	if cmderr.KindOf(res.Err) != cmderr.KindWindow {
		t.Fatalf("minimize without backend = %v, want WindowError", res.Err)
	}

	res = h.Dispatch(context.Background(), commands.Ping, nil)
	if res.Err != nil || res.Value != "pong" {
		t.Fatalf("ping = %+v, want pong", res)
	}
}

func TestHost_SetBackend(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	b := &fakeBackend{active: 0x42}
	h.SetBackend(b, nil)

	res := h.Dispatch(context.Background(), commands.MinimizeWindow, json.RawMessage(`{}`))
	if res.Err != nil {
		t.Fatalf("minimize error: %v", res.Err)
	}
	if len(b.minimized) != 1 || b.minimized[0] != 0x42 {
		t.Errorf("minimized = %v, want [0x42]", b.minimized)
	}
}

func TestHost_ReloadAppliesConfig(t *testing.T) {
	picker := &cancelPicker{}
	h := newTestHost(config.DefaultConfig(), picker)
	b := &fakeBackend{active: 0x1, byTitle: map[string]platform.WindowID{"Blog Writer": 0x7}}
	closed := false
	h.SetBackend(b, func() { closed = true })

	cfg := config.DefaultConfig()
	cfg.Window.TitleMatch = "Blog Writer"
	cfg.Dialogs.OpenTitle = "Open draft"
	if h.Reload(cfg) {
		t.Fatal("Reload() reported a display change")
	}
	if closed {
		t.Fatal("backend closed on reload without display change")
	}

	if res := h.Dispatch(context.Background(), commands.MinimizeWindow, nil); res.Err != nil {
		t.Fatalf("minimize error: %v", res.Err)
	}
	if len(b.minimized) != 1 || b.minimized[0] != 0x7 {
		t.Errorf("minimized = %v, want [0x7]", b.minimized)
	}

	if res := h.Dispatch(context.Background(), commands.OpenFileDialog, nil); res.Err != nil {
		t.Fatalf("open dialog error: %v", res.Err)
	}
	if len(picker.titles) != 1 || picker.titles[0] != "Open draft" {
		t.Errorf("dialog titles = %v, want [Open draft]", picker.titles)
	}
	if h.Config() != cfg {
		t.Error("Config() does not return the reloaded config")
	}
}

func TestHost_ReloadDisplayChangeDropsBackend(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	closed := false
	h.SetBackend(&fakeBackend{}, func() { closed = true })

	cfg := config.DefaultConfig()
	cfg.Display = ":1"
	if !h.Reload(cfg) {
		t.Fatal("Reload() did not report a display change")
	}
	if !closed || h.HasBackend() {
		t.Errorf("closed=%v hasBackend=%v, want backend dropped", closed, h.HasBackend())
	}
}

func TestHost_ToggleLockSurvivesRebuild(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	h.SetBackend(&fakeBackend{active: 0x42}, nil)

	h.toggleMu.Lock()
	h.Reload(config.DefaultConfig())

	done := make(chan commands.Result, 1)
	go func() {
		done <- h.Dispatch(context.Background(), commands.MaximizeWindow, nil)
	}()

	select {
	case res := <-done:
		t.Fatalf("maximize on rebuilt dispatcher ran while toggle lock was held: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}

	h.toggleMu.Unlock()
	select {
	case res := <-done:
		if res.Err != nil {
			t.Fatalf("maximize error: %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("maximize did not finish after the toggle lock was released")
	}
}

func TestReconnector_RetriesUntilConnected(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	attempts := 0
	open := func(display string) (platform.Backend, func(), error) {
		attempts++
		if attempts < 3 {
			return nil, nil, errors.New("cannot open display")
		}
		return &fakeBackend{active: 0x9}, nil, nil
	}
	r := NewReconnector(ReconnectorConfig{Logger: quietLogger()}, h, open)

	for i, want := range []bool{false, false, true, true} {
		if got := r.ReconnectNow(); got != want {
			t.Fatalf("attempt %d: ReconnectNow() = %v, want %v", i, got, want)
		}
	}
	if attempts != 3 {
		t.Errorf("opener called %d times, want 3", attempts)
	}
}

func TestReconnector_ReplacesLostBackend(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	first := &fakeBackend{active: 0x1}
	second := &fakeBackend{active: 0x2}
	firstClosed := false
	h.SetBackend(first, func() { firstClosed = true })

	var serverUp bool
	open := func(string) (platform.Backend, func(), error) {
		if !serverUp {
			return nil, nil, errors.New("cannot open display")
		}
		return second, nil, nil
	}
	r := NewReconnector(ReconnectorConfig{Logger: quietLogger()}, h, open)

	if !r.ReconnectNow() {
		t.Fatal("healthy backend was dropped")
	}

	first.fail(errors.New("x11 connection closed"))
	if r.ReconnectNow() {
		t.Fatal("dead backend still attached while the server is down")
	}
	if !firstClosed {
		t.Error("dead backend was not closed")
	}
	res := h.Dispatch(context.Background(), commands.MinimizeWindow, json.RawMessage(`{}`))
	if cmderr.KindOf(res.Err) != cmderr.KindWindow {
		t.Errorf("minimize while disconnected = %v, want WindowError", res.Err)
	}

	serverUp = true
	if !r.ReconnectNow() {
		t.Fatal("backend not reattached after the server came back")
	}
	res = h.Dispatch(context.Background(), commands.MinimizeWindow, json.RawMessage(`{}`))
	if res.Err != nil {
		t.Fatalf("minimize after reconnect: %v", res.Err)
	}
	if len(second.minimized) != 1 || second.minimized[0] != 0x2 {
		t.Errorf("minimized on new backend = %v, want [0x2]", second.minimized)
	}
}

func TestHost_CheckBackendKeepsBackendWithoutPing(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	if h.CheckBackend(time.Second) {
		t.Fatal("CheckBackend() = true with no backend")
	}
	h.SetBackend(struct{ platform.Backend }{&fakeBackend{}}, nil)
	if !h.CheckBackend(time.Second) {
		t.Error("backend without Ping was dropped")
	}
}

func TestReconnector_UsesConfiguredDisplay(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Display = ":3"
	h := newTestHost(cfg, nil)

	var got string
	r := NewReconnector(ReconnectorConfig{Logger: quietLogger()}, h, func(display string) (platform.Backend, func(), error) {
		got = display
		return &fakeBackend{}, nil, nil
	})
	if !r.ReconnectNow() {
		t.Fatal("expected backend after ReconnectNow")
	}
	if got != ":3" {
		t.Errorf("display = %q, want :3", got)
	}
}

func TestReconnector_Run(t *testing.T) {
	h := newTestHost(config.DefaultConfig(), nil)
	r := NewReconnector(ReconnectorConfig{Interval: 5 * time.Millisecond, Logger: quietLogger()}, h,
		func(string) (platform.Backend, func(), error) { return &fakeBackend{}, nil, nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !h.HasBackend() {
		if time.Now().After(deadline) {
			t.Fatal("backend never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOpenAuditLog(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging = config.LoggingConfig{
		Enabled: true,
		Level:   "debug",
		File:    filepath.Join(t.TempDir(), "logs", "commands.log"),
	}
	logger, err := OpenAuditLog(cfg)
	if err != nil {
		t.Fatalf("OpenAuditLog() error: %v", err)
	}

	h := NewHost(cfg, Options{Picker: &cancelPicker{}, Runner: nopRunner{}, Audit: logger, Logger: quietLogger()})
	h.Dispatch(context.Background(), commands.Ping, nil)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "command=ping") {
		t.Errorf("log = %q, want ping entry", data)
	}
}
