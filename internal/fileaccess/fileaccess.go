package fileaccess

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/options"
	"github.com/1broseidon/deskhost/internal/userdirs"
)

// defaultFileMode is used for newly created files.
const defaultFileMode os.FileMode = 0644

var errInvalidUTF8 = errors.New("stream did not contain valid UTF-8")

// Gateway performs synchronous reads and writes against the local filesystem.
type Gateway struct {
	appID        string
	atomicWrites bool
}

// NewGateway creates a file gateway. appID scopes the app-* base directories;
// atomicWrites selects temp-file-and-rename writes.
func NewGateway(appID string, atomicWrites bool) *Gateway {
	return &Gateway{appID: appID, atomicWrites: atomicWrites}
}

// ReadFile returns the full contents of the file at path as text.
func (g *Gateway) ReadFile(path string, opts options.FileOptions) (string, error) {
	resolved, err := g.resolve(path, opts)
	if err != nil {
		return "", cmderr.IO("Failed to read file", err)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", cmderr.IO("Failed to read file", err)
	}
	if !utf8.Valid(data) {
		return "", cmderr.IO("Failed to read file", errInvalidUTF8)
	}
	return string(data), nil
}

// WriteFile creates or overwrites the file at path with content.
func (g *Gateway) WriteFile(path, content string, opts options.FileOptions) error {
	resolved, err := g.resolve(path, opts)
	if err != nil {
		return cmderr.IO("Failed to write file", err)
	}
	if err := g.write(resolved, []byte(content)); err != nil {
		return cmderr.IO("Failed to write file", err)
	}
	return nil
}

// WriteResolved writes content to an already resolved absolute path, as
// returned by a save dialog. Failures are reported with message.
func (g *Gateway) WriteResolved(path, content, message string) error {
	if err := g.write(path, []byte(content)); err != nil {
		return cmderr.IO(message, err)
	}
	return nil
}

// Exists reports whether path currently resolves to a file or directory.
// The answer may be stale by the time the caller acts on it.
func (g *Gateway) Exists(path string, opts options.FileOptions) bool {
	resolved, err := g.resolve(path, opts)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

func (g *Gateway) resolve(path string, opts options.FileOptions) (string, error) {
	if opts.BaseDir == "" || filepath.IsAbs(path) {
		return path, nil
	}
	base, err := userdirs.Resolve(opts.BaseDir, g.appID)
	if err != nil {
		return "", fmt.Errorf("resolve base directory %s: %w", opts.BaseDir, err)
	}
	return filepath.Join(base, path), nil
}

func (g *Gateway) write(path string, data []byte) error {
	if !g.atomicWrites {
		return os.WriteFile(path, data, defaultFileMode)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temporary file next to path, syncs it and
// renames it over path. An existing file keeps its permission bits. A
// symlinked path is written through: the rename replaces the link target.
func writeAtomic(path string, data []byte) (err error) {
	if info, lerr := os.Lstat(path); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		target, everr := filepath.EvalSymlinks(path)
		if everr != nil {
			// Dangling link: let the kernel create the target.
			return os.WriteFile(path, data, defaultFileMode)
		}
		path = target
	}

	mode := defaultFileMode
	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && info.IsDir():
		return &os.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	case statErr == nil:
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
