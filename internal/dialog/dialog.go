package dialog

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/fileaccess"
	"github.com/1broseidon/deskhost/internal/options"
)

// Gateway builds native open/save dialogs from dialog options.
type Gateway struct {
	picker    Picker
	files     *fileaccess.Gateway
	openTitle string
	saveTitle string
}

// NewGateway creates a dialog gateway. Saves are written through files.
// openTitle and saveTitle are used when a request carries no title.
func NewGateway(picker Picker, files *fileaccess.Gateway, openTitle, saveTitle string) *Gateway {
	return &Gateway{
		picker:    picker,
		files:     files,
		openTitle: openTitle,
		saveTitle: saveTitle,
	}
}

// OpenFile presents an open dialog and returns the chosen absolute path, or
// nil when the user cancels.
func (g *Gateway) OpenFile(opts options.DialogOptions) (*string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.WantsMultiple() {
		log.Printf("open_file_dialog: multiple selection is not supported, falling back to single selection")
	}

	req := Request{
		Title:   opts.TitleOr(g.openTitle),
		Filters: opts.Filters,
	}
	req.StartDir, req.StartFile = splitStartPath(opts.DefaultPath)

	var (
		path string
		err  error
	)
	if opts.Directory {
		path, err = g.picker.Directory(req)
	} else {
		path, err = g.picker.Open(req)
	}
	if errors.Is(err, ErrCancelled) {
		return nil, nil
	}
	if err != nil {
		return nil, cmderr.IO("Failed to open file dialog", err)
	}
	return absPtr(path), nil
}

// SaveFile presents a save dialog pre-filled with defaultName and, on
// confirmation, writes content to the chosen path. A cancelled dialog returns
// nil and writes nothing. A failed write is not retried; the user has to start
// over.
func (g *Gateway) SaveFile(defaultName, content string, opts options.DialogOptions) (*string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Directory {
		return nil, cmderr.InvalidArgument("directory is only valid for open_file_dialog")
	}

	req := Request{
		Title:   opts.TitleOr(g.saveTitle),
		Filters: opts.Filters,
	}
	req.StartDir, req.StartFile = splitStartPath(opts.DefaultPath)
	if name := strings.TrimSpace(defaultName); name != "" {
		if dir := filepath.Dir(name); dir != "." && req.StartDir == "" {
			req.StartDir = dir
		}
		req.StartFile = filepath.Base(name)
	}

	path, err := g.picker.Save(req)
	if errors.Is(err, ErrCancelled) {
		return nil, nil
	}
	if err != nil {
		return nil, cmderr.IO("Failed to open save dialog", err)
	}

	chosen := absPtr(path)
	if err := g.files.WriteResolved(*chosen, content, "Failed to save file"); err != nil {
		return nil, err
	}
	return chosen, nil
}

// splitStartPath turns a default path into a start directory and, when it
// names something that is not an existing directory, a start file.
func splitStartPath(p string) (dir, file string) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ""
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p, ""
	}
	return filepath.Dir(p), filepath.Base(p)
}

func absPtr(p string) *string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return &p
}
