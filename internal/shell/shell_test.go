package shell

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/1broseidon/deskhost/internal/cmderr"
)

type call struct {
	Mode string
	Name string
	Args []string
}

// fakeRunner records invocations; fail maps a program name to the error it
// should return.
type fakeRunner struct {
	calls []call
	fail  map[string]error
}

func (f *fakeRunner) do(mode, name string, args []string) error {
	f.calls = append(f.calls, call{Mode: mode, Name: name, Args: args})
	return f.fail[name]
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	return f.do("run", name, args)
}

func (f *fakeRunner) Start(_ context.Context, name string, args ...string) error {
	return f.do("start", name, args)
}

func newTestGateway(goos string, r *fakeRunner, env map[string]string) *Gateway {
	g := NewGateway(r, Options{BundleID: "com.example.app", GOOS: goos})
	g.getenv = func(k string) string { return env[k] }
	return g
}

func TestShowNotification(t *testing.T) {
	ctx := context.Background()

	r := &fakeRunner{}
	if err := newTestGateway("linux", r, nil).ShowNotification(ctx, "Saved", "-draft.md written"); err != nil {
		t.Fatalf("ShowNotification() error: %v", err)
	}
	want := call{Mode: "run", Name: "notify-send", Args: []string{"-a", "com.example.app", "--", "Saved", "-draft.md written"}}
	if !reflect.DeepEqual(r.calls, []call{want}) {
		t.Errorf("calls = %+v, want %+v", r.calls, want)
	}

	r = &fakeRunner{}
	if err := newTestGateway("darwin", r, nil).ShowNotification(ctx, `Say "hi"`, "body"); err != nil {
		t.Fatalf("darwin ShowNotification() error: %v", err)
	}
	if r.calls[0].Name != "osascript" || r.calls[0].Args[1] != `display notification "body" with title "Say \"hi\""` {
		t.Errorf("darwin call = %+v", r.calls[0])
	}

	r = &fakeRunner{fail: map[string]error{"notify-send": errors.New("exit status 1")}}
	err := newTestGateway("linux", r, nil).ShowNotification(ctx, "t", "b")
	if cmderr.KindOf(err) != cmderr.KindNotification || !strings.HasPrefix(err.Error(), "Failed to show notification: ") {
		t.Errorf("error = %v, want NotificationError", err)
	}

	err = newTestGateway("linux", &fakeRunner{}, nil).ShowNotification(ctx, "  ", "b")
	if cmderr.KindOf(err) != cmderr.KindInvalidArgument {
		t.Errorf("empty title error = %v, want InvalidArgumentError", err)
	}
}

func TestOpenURL_Validation(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/post?id=1", false},
		{"http://localhost:8080", false},
		{"mailto:editor@example.com", false},
		{"HTTPS://EXAMPLE.COM", false},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"example.com", true},
		{"https://", true},
		{"https://example.com/\nrm", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			r := &fakeRunner{}
			err := newTestGateway("linux", r, nil).OpenURL(context.Background(), tt.url)
			if tt.wantErr {
				if cmderr.KindOf(err) != cmderr.KindShell {
					t.Fatalf("error = %v, want ShellError", err)
				}
				if len(r.calls) != 0 {
					t.Fatalf("rejected url reached the shell: %+v", r.calls)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenURL() error: %v", err)
			}
			if len(r.calls) != 1 || r.calls[0].Name != "xdg-open" || r.calls[0].Mode != "start" {
				t.Errorf("calls = %+v, want one xdg-open start", r.calls)
			}
		})
	}
}

func TestOpenURL_Openers(t *testing.T) {
	tests := map[string]string{"linux": "xdg-open", "darwin": "open", "windows": "rundll32"}
	for goos, want := range tests {
		r := &fakeRunner{}
		if err := newTestGateway(goos, r, nil).OpenURL(context.Background(), "https://example.com"); err != nil {
			t.Fatalf("%s: OpenURL() error: %v", goos, err)
		}
		if r.calls[0].Name != want {
			t.Errorf("%s: opener = %q, want %q", goos, r.calls[0].Name, want)
		}
	}
}

func TestOpenURL_CustomSchemes(t *testing.T) {
	g := NewGateway(&fakeRunner{}, Options{AllowedSchemes: []string{"obsidian"}, GOOS: "linux"})
	if err := g.OpenURL(context.Background(), "obsidian://open?vault=notes"); err != nil {
		t.Fatalf("OpenURL(custom) error: %v", err)
	}
	if err := g.OpenURL(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected https to be rejected when not configured")
	}
}

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "post.md")
	if err := os.WriteFile(path, []byte("# Post"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpenInDefaultEditor_Candidates(t *testing.T) {
	path := writeFixture(t)
	ctx := context.Background()

	r := &fakeRunner{}
	g := newTestGateway("linux", r, map[string]string{"VISUAL": "vim", "EDITOR": "code --wait"})
	if err := g.OpenInDefaultEditor(ctx, path); err != nil {
		t.Fatalf("OpenInDefaultEditor() error: %v", err)
	}
	want := call{Mode: "start", Name: "code", Args: []string{"--wait", path}}
	if !reflect.DeepEqual(r.calls, []call{want}) {
		t.Errorf("calls = %+v, want %+v", r.calls, want)
	}

	r = &fakeRunner{fail: map[string]error{"gedit": errors.New("not found")}}
	g = NewGateway(r, Options{Editor: "gedit", GOOS: "linux"})
	g.getenv = func(string) string { return "" }
	if err := g.OpenInDefaultEditor(ctx, path); err != nil {
		t.Fatalf("fallback error: %v", err)
	}
	if len(r.calls) != 2 || r.calls[1].Name != "xdg-open" {
		t.Errorf("calls = %+v, want gedit then xdg-open", r.calls)
	}
}

func TestOpenInDefaultEditor_Rejects(t *testing.T) {
	dir := t.TempDir()
	for name, path := range map[string]string{
		"relative":  "notes/post.md",
		"missing":   filepath.Join(dir, "missing.md"),
		"directory": dir,
		"control":   dir + "/a\x00b",
	} {
		t.Run(name, func(t *testing.T) {
			r := &fakeRunner{}
			err := newTestGateway("linux", r, nil).OpenInDefaultEditor(context.Background(), path)
			if cmderr.KindOf(err) != cmderr.KindShell || !strings.HasPrefix(err.Error(), "Failed to open in default editor") {
				t.Fatalf("error = %v, want ShellError", err)
			}
			if len(r.calls) != 0 {
				t.Fatalf("runner called for rejected path: %+v", r.calls)
			}
		})
	}
}

func TestShowInFileManager(t *testing.T) {
	path := writeFixture(t)
	ctx := context.Background()

	r := &fakeRunner{}
	if err := newTestGateway("linux", r, nil).ShowInFileManager(ctx, path); err != nil {
		t.Fatalf("ShowInFileManager() error: %v", err)
	}
	if len(r.calls) != 1 || r.calls[0].Name != "dbus-send" {
		t.Fatalf("calls = %+v, want dbus-send", r.calls)
	}
	if got := r.calls[0].Args[len(r.calls[0].Args)-2]; got != "array:string:file://"+path {
		t.Errorf("dbus item = %q", got)
	}

	r = &fakeRunner{fail: map[string]error{"dbus-send": errors.New("no session bus")}}
	if err := newTestGateway("linux", r, nil).ShowInFileManager(ctx, path); err != nil {
		t.Fatalf("fallback error: %v", err)
	}
	if len(r.calls) != 2 || r.calls[1].Name != "xdg-open" || r.calls[1].Args[0] != filepath.Dir(path) {
		t.Errorf("calls = %+v, want xdg-open on parent", r.calls)
	}

	r = &fakeRunner{}
	if err := newTestGateway("darwin", r, nil).ShowInFileManager(ctx, path); err != nil {
		t.Fatalf("darwin error: %v", err)
	}
	if !reflect.DeepEqual(r.calls[0], call{Mode: "start", Name: "open", Args: []string{"-R", path}}) {
		t.Errorf("darwin call = %+v", r.calls[0])
	}

	r = &fakeRunner{}
	g := NewGateway(r, Options{FileManager: "thunar --no-daemon", GOOS: "linux"})
	if err := g.ShowInFileManager(ctx, path); err != nil {
		t.Fatalf("configured file manager error: %v", err)
	}
	if !reflect.DeepEqual(r.calls[0].Args, []string{"--no-daemon", filepath.Dir(path)}) {
		t.Errorf("configured call = %+v", r.calls[0])
	}

	err := newTestGateway("linux", &fakeRunner{}, nil).ShowInFileManager(ctx, filepath.Join(filepath.Dir(path), "gone.md"))
	if cmderr.KindOf(err) != cmderr.KindShell {
		t.Errorf("missing path error = %v, want ShellError", err)
	}
}

func TestDirectories(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
	t.Setenv("XDG_DOCUMENTS_DIR", "")

	g := newTestGateway("linux", &fakeRunner{}, nil)
	if runtime.GOOS == "linux" {
		dir, err := g.AppDataDir()
		if err != nil {
			t.Fatalf("AppDataDir() error: %v", err)
		}
		if dir != filepath.Join(home, "data", "com.example.app") {
			t.Errorf("AppDataDir() = %q", dir)
		}
		docs, err := g.DocumentsDir()
		if err != nil {
			t.Fatalf("DocumentsDir() error: %v", err)
		}
		if docs != filepath.Join(home, "Documents") {
			t.Errorf("DocumentsDir() = %q", docs)
		}
	}

	_, err := NewGateway(&fakeRunner{}, Options{}).AppDataDir()
	if cmderr.KindOf(err) != cmderr.KindPathResolution {
		t.Errorf("empty bundle id error = %v, want PathResolutionError", err)
	}
}
