package dialog

import (
	"errors"

	sqdialog "github.com/sqweek/dialog"
)

// NativePicker shows the platform's own file dialogs (GTK, Cocoa, Win32).
type NativePicker struct{}

var _ Picker = NativePicker{}

func (NativePicker) Open(req Request) (string, error) {
	return translate(fileBuilder(req).Load())
}

func (NativePicker) Save(req Request) (string, error) {
	return translate(fileBuilder(req).Save())
}

func (NativePicker) Directory(req Request) (string, error) {
	b := sqdialog.Directory().Title(req.Title)
	if req.StartDir != "" {
		b = b.SetStartDir(req.StartDir)
	}
	return translate(b.Browse())
}

func fileBuilder(req Request) *sqdialog.FileBuilder {
	b := sqdialog.File().Title(req.Title)
	for _, f := range req.Filters {
		b = b.Filter(f.Name, f.Extensions...)
	}
	if req.StartDir != "" {
		b = b.SetStartDir(req.StartDir)
	}
	if req.StartFile != "" {
		b = b.SetStartFile(req.StartFile)
	}
	return b
}

func translate(path string, err error) (string, error) {
	if errors.Is(err, sqdialog.ErrCancelled) {
		return "", ErrCancelled
	}
	return path, err
}
