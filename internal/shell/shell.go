// Package shell hands work to the desktop environment: notifications, URL
// and file openers, and standard directory lookups.
package shell

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/userdirs"
)

// DefaultAllowedSchemes are the URL schemes OpenURL accepts when none are
// configured.
var DefaultAllowedSchemes = []string{"http", "https", "mailto"}

// terminalEditors cannot open a window of their own, so $VISUAL/$EDITOR
// values naming them are skipped.
var terminalEditors = map[string]bool{
	"vi": true, "vim": true, "nvim": true, "nano": true, "pico": true,
	"micro": true, "hx": true, "helix": true, "kak": true, "ed": true,
	"joe": true, "ne": true, "mg": true, "emacs": true, "less": true,
}

// Options configures a Gateway.
type Options struct {
	// BundleID names the application in notifications and scopes the app
	// data directory.
	BundleID       string
	AllowedSchemes []string
	// Editor is a command line used by OpenInDefaultEditor before $VISUAL
	// and $EDITOR. The file path is appended.
	Editor string
	// FileManager is a command line used by ShowInFileManager instead of
	// the platform default. The parent directory is appended.
	FileManager string
	// GOOS overrides runtime.GOOS.
	GOOS string
}

// Gateway performs shell integration calls.
type Gateway struct {
	runner  Runner
	opts    Options
	schemes map[string]bool
	getenv  func(string) string
}

// NewGateway creates a shell gateway that runs helpers through runner.
func NewGateway(runner Runner, opts Options) *Gateway {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	allowed := opts.AllowedSchemes
	if len(allowed) == 0 {
		allowed = DefaultAllowedSchemes
	}
	schemes := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		schemes[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return &Gateway{
		runner:  runner,
		opts:    opts,
		schemes: schemes,
		getenv:  os.Getenv,
	}
}

// ShowNotification posts a desktop notification.
func (g *Gateway) ShowNotification(ctx context.Context, title, body string) error {
	const msg = "Failed to show notification"
	if strings.TrimSpace(title) == "" {
		return cmderr.InvalidArgument("notification title is required")
	}

	var err error
	switch g.opts.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(body), appleScriptString(title))
		err = g.runner.Run(ctx, "osascript", "-e", script)
	case "windows":
		err = errors.New("notifications are not supported on windows")
	default:
		err = g.runner.Run(ctx, "notify-send", "-a", g.opts.BundleID, "--", title, body)
	}
	if err != nil {
		return cmderr.Notification(msg, err)
	}
	return nil
}

// OpenURL opens rawURL with the system's default handler. Only allowed
// schemes are handed to the desktop.
func (g *Gateway) OpenURL(ctx context.Context, rawURL string) error {
	const msg = "Failed to open URL"
	target, err := g.validateURL(rawURL)
	if err != nil {
		return cmderr.Shell(msg, err)
	}
	if err := g.openTarget(ctx, target); err != nil {
		return cmderr.Shell(msg, err)
	}
	return nil
}

// OpenInDefaultEditor opens an existing file in the configured or default
// editor.
func (g *Gateway) OpenInDefaultEditor(ctx context.Context, path string) error {
	const msg = "Failed to open in default editor"
	clean, err := validatePath(path)
	if err != nil {
		return cmderr.Shell(msg, err)
	}
	info, err := os.Stat(clean)
	if err != nil {
		return cmderr.Shell(msg, err)
	}
	if info.IsDir() {
		return cmderr.Shell(msg, fmt.Errorf("%s is a directory", clean))
	}

	var lastErr error
	for _, candidate := range g.editorCandidates() {
		parts := strings.Fields(candidate)
		args := append(parts[1:], clean)
		if err := g.runner.Start(ctx, parts[0], args...); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if err := g.openTarget(ctx, clean); err != nil {
		if lastErr != nil {
			err = fmt.Errorf("%w (editor: %v)", err, lastErr)
		}
		return cmderr.Shell(msg, err)
	}
	return nil
}

// ShowInFileManager reveals path in the platform file manager, selecting it
// where the file manager supports that.
func (g *Gateway) ShowInFileManager(ctx context.Context, path string) error {
	const msg = "Failed to show in file manager"
	clean, err := validatePath(path)
	if err != nil {
		return cmderr.Shell(msg, err)
	}
	if _, err := os.Stat(clean); err != nil {
		return cmderr.Shell(msg, err)
	}

	if fm := strings.Fields(g.opts.FileManager); len(fm) > 0 {
		args := append(fm[1:], filepath.Dir(clean))
		if err := g.runner.Start(ctx, fm[0], args...); err != nil {
			return cmderr.Shell(msg, err)
		}
		return nil
	}

	switch g.opts.GOOS {
	case "darwin":
		err = g.runner.Start(ctx, "open", "-R", clean)
	case "windows":
		err = g.runner.Start(ctx, "explorer", "/select,"+clean)
	default:
		err = g.showItemsDBus(ctx, clean)
		if err != nil {
			err = g.runner.Start(ctx, "xdg-open", filepath.Dir(clean))
		}
	}
	if err != nil {
		return cmderr.Shell(msg, err)
	}
	return nil
}

// AppDataDir returns the per-application data directory.
func (g *Gateway) AppDataDir() (string, error) {
	dir, err := userdirs.AppDataDir(g.opts.BundleID)
	if err != nil {
		return "", cmderr.PathResolution("Failed to get app data directory", err)
	}
	return dir, nil
}

// DocumentsDir returns the user's documents directory.
func (g *Gateway) DocumentsDir() (string, error) {
	dir, err := userdirs.DocumentsDir()
	if err != nil {
		return "", cmderr.PathResolution("Failed to get documents directory", err)
	}
	return dir, nil
}

func (g *Gateway) validateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("url is empty")
	}
	if hasControl(rawURL) {
		return "", errors.New("url contains control characters")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return "", fmt.Errorf("url %q has no scheme", rawURL)
	}
	if !g.schemes[scheme] {
		return "", fmt.Errorf("scheme %q is not allowed", scheme)
	}
	if (scheme == "http" || scheme == "https") && u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.String(), nil
}

func (g *Gateway) openTarget(ctx context.Context, target string) error {
	switch g.opts.GOOS {
	case "darwin":
		return g.runner.Start(ctx, "open", target)
	case "windows":
		return g.runner.Start(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return g.runner.Start(ctx, "xdg-open", target)
	}
}

func (g *Gateway) editorCandidates() []string {
	var out []string
	if e := strings.TrimSpace(g.opts.Editor); e != "" {
		out = append(out, e)
	}
	for _, key := range []string{"VISUAL", "EDITOR"} {
		e := strings.TrimSpace(g.getenv(key))
		if e == "" {
			continue
		}
		bin := filepath.Base(strings.Fields(e)[0])
		if terminalEditors[bin] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// showItemsDBus calls org.freedesktop.FileManager1.ShowItems, which opens
// the containing folder with the item selected.
func (g *Gateway) showItemsDBus(ctx context.Context, path string) error {
	uri := (&url.URL{Scheme: "file", Path: path}).String()
	return g.runner.Run(ctx, "dbus-send",
		"--session",
		"--print-reply",
		"--dest=org.freedesktop.FileManager1",
		"--type=method_call",
		"/org/freedesktop/FileManager1",
		"org.freedesktop.FileManager1.ShowItems",
		"array:string:"+uri,
		"string:",
	)
}

// validatePath cleans path and requires it to be absolute and free of
// control characters.
func validatePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is empty")
	}
	if hasControl(path) {
		return "", errors.New("path contains control characters")
	}
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		return "", fmt.Errorf("path %q is not absolute", path)
	}
	return clean, nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
