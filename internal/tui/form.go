package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/1broseidon/deskhost/internal/config"
)

// settingsForm holds the editable values bound to the huh form. It is kept
// behind a pointer so the form's field bindings survive model copies.
type settingsForm struct {
	AppID      string
	Display    string
	TitleMatch string

	OpenTitle string
	SaveTitle string

	AtomicWrites bool

	Editor      string
	FileManager string
	Schemes     string

	BridgeEnabled bool
	Listen        string
	Path          string
	Origins       string
}

func newSettingsForm(cfg *config.Config) *settingsForm {
	return &settingsForm{
		AppID:         cfg.AppID,
		Display:       cfg.Display,
		TitleMatch:    cfg.Window.TitleMatch,
		OpenTitle:     cfg.Dialogs.OpenTitle,
		SaveTitle:     cfg.Dialogs.SaveTitle,
		AtomicWrites:  cfg.Files.AtomicWrites,
		Editor:        cfg.Shell.Editor,
		FileManager:   cfg.Shell.FileManager,
		Schemes:       strings.Join(cfg.Shell.AllowedSchemes, ", "),
		BridgeEnabled: cfg.Bridge.Enabled,
		Listen:        cfg.Bridge.Listen,
		Path:          cfg.Bridge.Path,
		Origins:       strings.Join(cfg.Bridge.AllowedOrigins, ", "),
	}
}

// apply returns a copy of cfg with the form values written over it.
// Settings the form does not show (logging) are carried over unchanged.
func (f *settingsForm) apply(cfg *config.Config) *config.Config {
	out := cloneConfig(cfg)
	out.AppID = strings.TrimSpace(f.AppID)
	out.Display = strings.TrimSpace(f.Display)
	out.Window.TitleMatch = strings.TrimSpace(f.TitleMatch)
	out.Dialogs.OpenTitle = f.OpenTitle
	out.Dialogs.SaveTitle = f.SaveTitle
	out.Files.AtomicWrites = f.AtomicWrites
	out.Shell.Editor = strings.TrimSpace(f.Editor)
	out.Shell.FileManager = strings.TrimSpace(f.FileManager)
	out.Shell.AllowedSchemes = splitList(f.Schemes)
	out.Bridge.Enabled = f.BridgeEnabled
	out.Bridge.Listen = strings.TrimSpace(f.Listen)
	out.Bridge.Path = strings.TrimSpace(f.Path)
	out.Bridge.AllowedOrigins = splitList(f.Origins)
	return out
}

func (f *settingsForm) build(width int) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("app_id").
				Title("App ID").
				Description("Bundle identifier; names the app-data directory").
				Validate(notEmpty).
				Value(&f.AppID),
			huh.NewInput().
				Key("display").
				Title("Display").
				Description("X display to control (empty: $DISPLAY)").
				Value(&f.Display),
			huh.NewInput().
				Key("title_match").
				Title("Window Title Match").
				Description("Substring of the window title (empty: active window)").
				Value(&f.TitleMatch),
		).Title("General"),
		huh.NewGroup(
			huh.NewInput().
				Key("open_title").
				Title("Open Dialog Title").
				Validate(notEmpty).
				Value(&f.OpenTitle),
			huh.NewInput().
				Key("save_title").
				Title("Save Dialog Title").
				Validate(notEmpty).
				Value(&f.SaveTitle),
			huh.NewConfirm().
				Key("atomic_writes").
				Title("Atomic Writes").
				Description("Write through a temp file and rename").
				Value(&f.AtomicWrites),
		).Title("Files & Dialogs"),
		huh.NewGroup(
			huh.NewInput().
				Key("editor").
				Title("Editor").
				Description("Command for open_in_default_editor (empty: $VISUAL/$EDITOR)").
				Value(&f.Editor),
			huh.NewInput().
				Key("file_manager").
				Title("File Manager").
				Description("Command for show_in_file_manager (empty: D-Bus)").
				Value(&f.FileManager),
			huh.NewInput().
				Key("allowed_schemes").
				Title("Allowed URL Schemes").
				Description("Comma separated").
				Validate(notEmpty).
				Value(&f.Schemes),
		).Title("Shell"),
		huh.NewGroup(
			huh.NewConfirm().
				Key("bridge_enabled").
				Title("WebSocket Bridge").
				Affirmative("Enabled").
				Negative("Disabled").
				Value(&f.BridgeEnabled),
			huh.NewInput().
				Key("listen").
				Title("Listen Address").
				Value(&f.Listen),
			huh.NewInput().
				Key("path").
				Title("Path").
				Value(&f.Path),
			huh.NewInput().
				Key("allowed_origins").
				Title("Allowed Origins").
				Description("Comma separated (empty: same host only)").
				Value(&f.Origins),
		).Title("Bridge"),
	).WithWidth(width).WithShowHelp(true).WithShowErrors(true)
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

// splitList splits a comma or whitespace separated list, dropping empties.
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}
