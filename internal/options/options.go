package options

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/userdirs"
)

// AllFilesPattern is the wildcard extension meaning "any file".
const AllFilesPattern = "*"

// FileFilter is one named group of extensions shown in a file dialog.
type FileFilter struct {
	Name       string   `json:"name" jsonschema:"Label shown in the dialog filter list"`
	Extensions []string `json:"extensions" jsonschema:"Extensions without the leading dot (e.g. md, txt); * matches any file"`
}

// DialogOptions configures an open or save dialog.
type DialogOptions struct {
	Title       *string      `json:"title,omitempty" jsonschema:"Dialog title"`
	Filters     []FileFilter `json:"filters,omitempty" jsonschema:"Filter groups in display order"`
	Multiple    *bool        `json:"multiple,omitempty" jsonschema:"Multiple selection (not supported by the native picker; true falls back to single selection)"`
	DefaultPath string       `json:"defaultPath,omitempty" jsonschema:"Directory or file the dialog starts in"`
	Directory   bool         `json:"directory,omitempty" jsonschema:"Pick a directory instead of a file (open dialog only)"`
}

// FileOptions configures read_file, write_file and exists.
type FileOptions struct {
	BaseDir userdirs.BaseDir `json:"baseDir,omitempty" jsonschema:"Resolve relative paths against this directory (app-data, document, home, ...)"`
}

// Decode strictly decodes a JSON payload into dst. An empty or null payload
// leaves dst untouched. Unknown keys and trailing data are rejected.
func Decode(raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return cmderr.InvalidArgument("Invalid arguments: %s", describeDecodeError(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return cmderr.InvalidArgument("Invalid arguments: unexpected data after JSON object")
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field != "" {
			return fmt.Sprintf("field %q must be %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return strings.TrimPrefix(err.Error(), "json: ")
}

// Validate checks and normalises the dialog options in place. Multiple is
// not validated: the native picker always selects a single path.
func (o *DialogOptions) Validate() error {
	if o == nil {
		return nil
	}
	for i := range o.Filters {
		f := &o.Filters[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return cmderr.InvalidArgument("filters[%d]: name is required", i)
		}
		exts, err := normalizeExtensions(f.Extensions)
		if err != nil {
			return cmderr.InvalidArgument("filters[%d] (%s): %v", i, f.Name, err)
		}
		f.Extensions = exts
	}
	return nil
}

// WantsMultiple reports whether the caller asked for multiple selection.
func (o *DialogOptions) WantsMultiple() bool {
	return o != nil && o.Multiple != nil && *o.Multiple
}

// TitleOr returns the configured title or fallback when none was given.
func (o *DialogOptions) TitleOr(fallback string) string {
	if o == nil || o.Title == nil {
		return fallback
	}
	return *o.Title
}

// normalizeExtensions strips leading "*." and "." from each extension,
// dropping duplicates while preserving order.
func normalizeExtensions(exts []string) ([]string, error) {
	if len(exts) == 0 {
		return nil, fmt.Errorf("at least one extension is required")
	}
	out := make([]string, 0, len(exts))
	seen := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext != AllFilesPattern {
			ext = strings.TrimPrefix(ext, "*")
			ext = strings.TrimPrefix(ext, ".")
		}
		if ext == "" {
			return nil, fmt.Errorf("empty extension")
		}
		if strings.ContainsAny(ext, `/\`) {
			return nil, fmt.Errorf("invalid extension %q", ext)
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out, nil
}

// Validate checks the file options.
func (o FileOptions) Validate() error {
	if o.BaseDir != "" && !o.BaseDir.Valid() {
		return cmderr.InvalidArgument("unknown baseDir %q", o.BaseDir)
	}
	return nil
}
