// Package tui is the interactive settings editor behind `deskhost config edit`.
package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/deskhost/internal/config"
)

// Run opens the editor on the config at path, or on the default config file
// when path is empty. Saved changes are pushed to the daemon through reloader
// when it answers.
func Run(path string, reloader Reloader) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("config edit requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	var res *config.LoadResult
	var err error
	if path == "" {
		res, err = config.LoadWithSources()
	} else {
		res, err = config.LoadFromPath(path)
	}
	if err != nil {
		return err
	}

	target := path
	if res.File != "" {
		target = res.File
	}
	if target == "" {
		if target, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	_, err = tea.NewProgram(newModel(res.Config, target, reloader), tea.WithAltScreen()).Run()
	return err
}
