package commands

import "github.com/1broseidon/deskhost/internal/options"

// PathArgs is the payload of read_file and exists.
type PathArgs struct {
	Path    string               `json:"path" jsonschema:"Path of the file; relative paths need options.baseDir"`
	Options *options.FileOptions `json:"options,omitempty" jsonschema:"File options"`
}

// WriteFileArgs is the payload of write_file.
type WriteFileArgs struct {
	Path    string               `json:"path" jsonschema:"Path of the file to create or overwrite"`
	Content string               `json:"content" jsonschema:"Full text content to write"`
	Options *options.FileOptions `json:"options,omitempty" jsonschema:"File options"`
}

// OpenDialogArgs is the payload of open_file_dialog.
type OpenDialogArgs struct {
	Options *options.DialogOptions `json:"options,omitempty" jsonschema:"Dialog options"`
}

// SaveDialogArgs is the payload of save_file_dialog.
type SaveDialogArgs struct {
	DefaultName string                 `json:"defaultName" jsonschema:"File name pre-filled in the dialog"`
	Content     string                 `json:"content" jsonschema:"Text written to the chosen path"`
	Options     *options.DialogOptions `json:"options,omitempty" jsonschema:"Dialog options"`
}

// WindowArgs is the payload of the window commands. Zero targets the
// application window.
type WindowArgs struct {
	WindowID uint32 `json:"windowId,omitempty" jsonschema:"X11 window id (default: the application window)"`
}

// SetTitleArgs is the payload of set_window_title.
type SetTitleArgs struct {
	Title    string `json:"title" jsonschema:"New window title"`
	WindowID uint32 `json:"windowId,omitempty" jsonschema:"X11 window id (default: the application window)"`
}

// NotificationArgs is the payload of show_notification.
type NotificationArgs struct {
	Title string `json:"title" jsonschema:"Notification summary"`
	Body  string `json:"body" jsonschema:"Notification body text"`
}

// URLArgs is the payload of open_url.
type URLArgs struct {
	URL string `json:"url" jsonschema:"Absolute URL (http, https or mailto unless configured otherwise)"`
}

// ShellPathArgs is the payload of open_in_default_editor and
// show_in_file_manager.
type ShellPathArgs struct {
	Path string `json:"path" jsonschema:"Absolute path of an existing file"`
}

// NoArgs is the payload of commands that take no arguments.
type NoArgs struct{}

func (a PathArgs) fileOptions() options.FileOptions {
	if a.Options == nil {
		return options.FileOptions{}
	}
	return *a.Options
}

func dialogOptions(o *options.DialogOptions) options.DialogOptions {
	if o == nil {
		return options.DialogOptions{}
	}
	return *o
}
