package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/deskhost/internal/config"
)

// Reloader asks a running daemon to re-read its config.
type Reloader interface {
	Reload(ctx context.Context) error
}

var errNoChanges = errors.New("no changes to save")

type phase int

const (
	phaseView phase = iota
	phaseEdit
	phaseConfirm
	phaseResult
)

type keyMap struct {
	Edit    key.Binding
	Save    key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Save:    key.NewBinding(key.WithKeys("ctrl+s", "s"), key.WithHelp("s", "save")),
		Confirm: key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter", "write file")),
		Cancel:  key.NewBinding(key.WithKeys("esc", "n"), key.WithHelp("esc", "cancel")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type model struct {
	path     string
	cfg      *config.Config
	saved    *config.Config
	reloader Reloader

	phase  phase
	form   *huh.Form
	fields *settingsForm
	diff   []diffLine
	err    error
	notice string

	keys   keyMap
	help   help.Model
	width  int
	height int
}

func newModel(cfg *config.Config, path string, reloader Reloader) model {
	return model{
		path:     path,
		cfg:      cfg,
		saved:    cloneConfig(cfg),
		reloader: reloader,
		keys:     defaultKeyMap(),
		help:     help.New(),
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = ws.Width, ws.Height
		m.help.Width = ws.Width
	}

	switch m.phase {
	case phaseEdit:
		return m.updateEdit(msg)
	case phaseConfirm:
		return m.updateConfirm(msg)
	case phaseResult:
		if _, ok := msg.(tea.KeyMsg); ok {
			m.phase = phaseView
		}
		return m, nil
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(km, m.keys.Edit):
		m.fields = newSettingsForm(m.cfg)
		m.form = m.fields.build(formWidth(m.width))
		m.phase = phaseEdit
		return m, m.form.Init()
	case key.Matches(km, m.keys.Save):
		m.diff = diffConfigs(m.saved, m.cfg)
		if len(m.diff) == 0 {
			m.err, m.notice = errNoChanges, ""
			m.phase = phaseResult
			return m, nil
		}
		m.phase = phaseConfirm
	}
	return m, nil
}

func (m model) updateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.form, m.fields = nil, nil
			m.phase = phaseView
			return m, nil
		}
	}

	next, cmd := m.form.Update(msg)
	if f, ok := next.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		updated := m.fields.apply(m.cfg)
		m.form, m.fields = nil, nil
		if err := updated.Validate(); err != nil {
			m.err, m.notice = err, ""
			m.phase = phaseResult
			return m, nil
		}
		m.cfg = updated
		m.phase = phaseView
		return m, nil
	case huh.StateAborted:
		m.form, m.fields = nil, nil
		m.phase = phaseView
		return m, nil
	}
	return m, cmd
}

func (m model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, m.keys.Confirm):
		m.err, m.notice = m.save(), ""
		if m.err == nil {
			m.notice = fmt.Sprintf("Saved %s", m.path)
			if m.reloadDaemon() {
				m.notice += "\nDaemon reloaded"
			}
		}
		m.phase = phaseResult
	case key.Matches(km, m.keys.Cancel):
		m.phase = phaseView
	case km.String() == "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) save() error {
	if err := m.cfg.SaveTo(m.path); err != nil {
		return err
	}
	m.saved = cloneConfig(m.cfg)
	m.diff = nil
	return nil
}

func (m model) reloadDaemon() bool {
	if m.reloader == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.reloader.Reload(ctx) == nil
}

func formWidth(w int) int {
	if w-4 < 40 {
		return 40
	}
	return w - 4
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Width(22).Align(lipgloss.Right).PaddingRight(2)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	addStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	removeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(1, 2)
)

func (m model) View() string {
	header := titleStyle.Render("deskhost settings") + dimStyle.Render("  "+m.path)

	var body, footer string
	switch m.phase {
	case phaseEdit:
		body = m.form.View()
		footer = dimStyle.Render("esc: discard edits  ctrl+c: quit")
	case phaseConfirm:
		body = boxStyle.Render(renderDiff(m.diff))
		footer = m.help.ShortHelpView([]key.Binding{m.keys.Confirm, m.keys.Cancel})
	case phaseResult:
		if m.err != nil {
			body = boxStyle.Render(errStyle.Render("Error: " + m.err.Error()))
		} else {
			body = boxStyle.Render(okStyle.Render(m.notice))
		}
		footer = dimStyle.Render("press any key to continue")
	default:
		body = m.viewSettings()
		footer = m.help.ShortHelpView([]key.Binding{m.keys.Edit, m.keys.Save, m.keys.Quit})
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer))
}

func (m model) viewSettings() string {
	cfg := m.cfg
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	bridge := "disabled"
	if cfg.Bridge.Enabled {
		bridge = fmt.Sprintf("ws://%s%s", cfg.Bridge.Listen, cfg.Bridge.Path)
	}

	lines := []string{
		row("App ID", cfg.AppID),
		row("Display", orDefault(cfg.Display, "($DISPLAY)")),
		row("Window", orDefault(cfg.Window.TitleMatch, "(active window)")),
		"",
		row("Open Dialog", cfg.Dialogs.OpenTitle),
		row("Save Dialog", cfg.Dialogs.SaveTitle),
		row("Atomic Writes", fmt.Sprint(cfg.Files.AtomicWrites)),
		"",
		row("Editor", orDefault(cfg.Shell.Editor, "($VISUAL/$EDITOR)")),
		row("File Manager", orDefault(cfg.Shell.FileManager, "(D-Bus)")),
		row("URL Schemes", fmt.Sprint(cfg.Shell.AllowedSchemes)),
		"",
		row("Bridge", bridge),
	}
	if len(cfg.Bridge.AllowedOrigins) > 0 {
		lines = append(lines, row("Allowed Origins", fmt.Sprint(cfg.Bridge.AllowedOrigins)))
	}
	if diffConfigs(m.saved, m.cfg) != nil {
		lines = append(lines, "", addStyle.Render("  unsaved changes"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderDiff(lines []diffLine) string {
	out := make([]string, 0, len(lines)+2)
	out = append(out, valueStyle.Render("Pending changes"), "")
	for _, l := range lines {
		switch l.kind {
		case diffAdded:
			out = append(out, addStyle.Render("+ "+l.text))
		case diffRemoved:
			out = append(out, removeStyle.Render("- "+l.text))
		default:
			out = append(out, dimStyle.Render("  "+l.text))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
