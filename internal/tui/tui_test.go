package tui

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/deskhost/internal/config"
)

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload(context.Context) error {
	f.calls++
	return f.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T, want model", next)
	}
	return out
}

func TestDiffConfigs(t *testing.T) {
	before := config.DefaultConfig()
	if got := diffConfigs(before, config.DefaultConfig()); got != nil {
		t.Fatalf("diff of equal configs = %+v, want nil", got)
	}

	after := config.DefaultConfig()
	after.AppID = "com.example.notes"
	got := diffConfigs(before, after)

	var removed, added []string
	for _, l := range got {
		switch l.kind {
		case diffRemoved:
			removed = append(removed, l.text)
		case diffAdded:
			added = append(added, l.text)
		}
	}
	if !reflect.DeepEqual(removed, []string{"app_id: " + config.DefaultAppID}) {
		t.Errorf("removed = %q", removed)
	}
	if !reflect.DeepEqual(added, []string{"app_id: com.example.notes"}) {
		t.Errorf("added = %q", added)
	}
	if len(got) > 4 {
		t.Errorf("diff kept %d lines, want only the change and its context", len(got))
	}
}

func TestLineDiffTrimsContext(t *testing.T) {
	a := []string{"a", "b", "c", "d", "e", "f", "g"}
	b := []string{"a", "b", "c", "D", "e", "f", "g"}
	got := trimContext(lineDiff(a, b))
	want := []diffLine{
		{diffSame, "..."},
		{diffSame, "c"},
		{diffRemoved, "d"},
		{diffAdded, "D"},
		{diffSame, "e"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("trimContext(lineDiff) = %+v, want %+v", got, want)
	}
}

func TestSettingsFormRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bridge.AllowedOrigins = []string{"http://localhost:5173"}
	if got := newSettingsForm(cfg).apply(cfg); !reflect.DeepEqual(got, cfg) {
		t.Errorf("apply(newSettingsForm(cfg)) = %+v, want %+v", got, cfg)
	}
}

func TestSettingsFormApply(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Enabled = true

	f := newSettingsForm(cfg)
	f.Schemes = "https , mailto"
	f.BridgeEnabled = true
	f.Origins = "http://localhost:5173,  app://local"
	f.TitleMatch = "  Blog Writer "

	got := f.apply(cfg)
	if !reflect.DeepEqual(got.Shell.AllowedSchemes, []string{"https", "mailto"}) {
		t.Errorf("AllowedSchemes = %q", got.Shell.AllowedSchemes)
	}
	if !reflect.DeepEqual(got.Bridge.AllowedOrigins, []string{"http://localhost:5173", "app://local"}) {
		t.Errorf("AllowedOrigins = %q", got.Bridge.AllowedOrigins)
	}
	if !got.Bridge.Enabled || got.Window.TitleMatch != "Blog Writer" {
		t.Errorf("bridge/window not applied: %+v", got)
	}
	if !got.Logging.Enabled {
		t.Error("logging settings were not carried over")
	}
	if cfg.Bridge.Enabled {
		t.Error("apply modified the source config")
	}
}

func TestSaveWithoutChanges(t *testing.T) {
	m := newModel(config.DefaultConfig(), filepath.Join(t.TempDir(), "config.yaml"), nil)
	m = press(t, m, runes("s"))
	if m.phase != phaseResult || !errors.Is(m.err, errNoChanges) {
		t.Fatalf("phase = %v, err = %v; want result with errNoChanges", m.phase, m.err)
	}
	m = press(t, m, runes("x"))
	if m.phase != phaseView {
		t.Errorf("any key should dismiss the result, phase = %v", m.phase)
	}
}

func TestSaveWritesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskhost", "config.yaml")
	reloader := &fakeReloader{}
	m := newModel(config.DefaultConfig(), path, reloader)
	m.cfg.Dialogs.OpenTitle = "Open draft"

	m = press(t, m, runes("s"))
	if m.phase != phaseConfirm || len(m.diff) == 0 {
		t.Fatalf("phase = %v, diff = %d lines; want confirm with a diff", m.phase, len(m.diff))
	}
	if !strings.Contains(renderDiff(m.diff), "open_title: Open draft") {
		t.Errorf("rendered diff missing change:\n%s", renderDiff(m.diff))
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.err != nil {
		t.Fatalf("save error: %v", m.err)
	}
	if reloader.calls != 1 || !strings.Contains(m.notice, "Daemon reloaded") {
		t.Errorf("reload calls = %d, notice = %q", reloader.calls, m.notice)
	}

	res, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if res.Config.Dialogs.OpenTitle != "Open draft" {
		t.Errorf("saved open_title = %q", res.Config.Dialogs.OpenTitle)
	}
	if diffConfigs(m.saved, m.cfg) != nil {
		t.Error("saved snapshot not updated after save")
	}
}

func TestSaveReloadFailureKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	reloader := &fakeReloader{err: errors.New("daemon not running")}
	m := newModel(config.DefaultConfig(), path, reloader)
	m.cfg.Files.AtomicWrites = false

	m = press(t, m, runes("s"))
	m = press(t, m, runes("y"))
	if m.err != nil || m.notice != "Saved "+path {
		t.Errorf("err = %v, notice = %q", m.err, m.notice)
	}
}

func TestCancelConfirm(t *testing.T) {
	m := newModel(config.DefaultConfig(), filepath.Join(t.TempDir(), "config.yaml"), nil)
	m.cfg.AppID = "com.example.notes"
	m = press(t, m, runes("s"))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.phase != phaseView {
		t.Fatalf("phase = %v, want view", m.phase)
	}
	if !strings.Contains(m.View(), "unsaved changes") {
		t.Error("view should flag unsaved changes")
	}
}

func TestEditOpensAndDiscards(t *testing.T) {
	m := newModel(config.DefaultConfig(), "/tmp/config.yaml", nil)
	m = press(t, m, runes("e"))
	if m.phase != phaseEdit || m.form == nil || m.fields == nil {
		t.Fatalf("phase = %v, form = %v; want an open form", m.phase, m.form)
	}
	if m.fields.AppID != config.DefaultAppID {
		t.Errorf("form AppID = %q", m.fields.AppID)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.phase != phaseView || m.form != nil {
		t.Errorf("esc should discard the form, phase = %v", m.phase)
	}
}

func TestQuit(t *testing.T) {
	m := newModel(config.DefaultConfig(), "/tmp/config.yaml", nil)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
