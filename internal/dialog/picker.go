package dialog

import (
	"errors"

	"github.com/1broseidon/deskhost/internal/options"
)

// ErrCancelled is returned by a Picker when the user dismisses the dialog.
var ErrCancelled = errors.New("dialog cancelled")

// Request is a fully resolved dialog description handed to a Picker.
type Request struct {
	Title     string
	Filters   []options.FileFilter
	StartDir  string
	StartFile string
}

// Picker presents file dialogs. Implementations block until the user
// confirms or cancels.
type Picker interface {
	// Open asks for an existing file.
	Open(req Request) (string, error)
	// Save asks for a destination file name.
	Save(req Request) (string, error)
	// Directory asks for an existing directory. Filters are ignored.
	Directory(req Request) (string, error)
}
