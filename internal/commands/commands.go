// Package commands maps command names to the gateways that execute them.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/1broseidon/deskhost/internal/audit"
	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/dialog"
	"github.com/1broseidon/deskhost/internal/fileaccess"
	"github.com/1broseidon/deskhost/internal/options"
	"github.com/1broseidon/deskhost/internal/platform"
	"github.com/1broseidon/deskhost/internal/shell"
	"github.com/1broseidon/deskhost/internal/window"
)

// Command names.
const (
	ReadFile            = "read_file"
	WriteFile           = "write_file"
	Exists              = "exists"
	OpenFileDialog      = "open_file_dialog"
	SaveFileDialog      = "save_file_dialog"
	MinimizeWindow      = "minimize_window"
	MaximizeWindow      = "maximize_window"
	CloseWindow         = "close_window"
	SetWindowTitle      = "set_window_title"
	ShowNotification    = "show_notification"
	OpenURL             = "open_url"
	GetAppDataDir       = "get_app_data_dir"
	GetDocumentsDir     = "get_documents_dir"
	OpenInDefaultEditor = "open_in_default_editor"
	ShowInFileManager   = "show_in_file_manager"
	ListCommands        = "list_commands"
	Ping                = "ping"
)

// Result is the outcome of one command. Value is JSON-encodable and nil for
// commands that return nothing.
type Result struct {
	Value any
	Err   error
}

// Gateways are the services commands run against.
type Gateways struct {
	Files   *fileaccess.Gateway
	Dialogs *dialog.Gateway
	Windows *window.Gateway
	Shell   *shell.Gateway
}

type handlerFunc func(d *Dispatcher, ctx context.Context, raw json.RawMessage, details map[string]interface{}) (any, error)

type handler struct {
	action audit.ActionType
	run    handlerFunc
}

// Dispatcher decodes command payloads and runs them. It holds no state
// between calls and is safe for concurrent use.
type Dispatcher struct {
	gw       Gateways
	logger   *audit.Logger
	handlers map[string]handler
}

// New creates a dispatcher. logger may be nil.
func New(gw Gateways, logger *audit.Logger) *Dispatcher {
	d := &Dispatcher{gw: gw, logger: logger}
	d.handlers = map[string]handler{
		ReadFile:            {audit.ActionFileRead, (*Dispatcher).readFile},
		WriteFile:           {audit.ActionFileWrite, (*Dispatcher).writeFile},
		Exists:              {audit.ActionFileExists, (*Dispatcher).exists},
		OpenFileDialog:      {audit.ActionDialogOpen, (*Dispatcher).openFileDialog},
		SaveFileDialog:      {audit.ActionDialogSave, (*Dispatcher).saveFileDialog},
		MinimizeWindow:      {audit.ActionWindow, windowOp((*window.Gateway).Minimize)},
		MaximizeWindow:      {audit.ActionWindow, windowOp((*window.Gateway).ToggleMaximize)},
		CloseWindow:         {audit.ActionWindow, windowOp((*window.Gateway).Close)},
		SetWindowTitle:      {audit.ActionWindow, (*Dispatcher).setWindowTitle},
		ShowNotification:    {audit.ActionNotify, (*Dispatcher).showNotification},
		OpenURL:             {audit.ActionShellOpen, (*Dispatcher).openURL},
		GetAppDataDir:       {audit.ActionDirLookup, noArgs(func(d *Dispatcher) (any, error) { return d.gw.Shell.AppDataDir() })},
		GetDocumentsDir:     {audit.ActionDirLookup, noArgs(func(d *Dispatcher) (any, error) { return d.gw.Shell.DocumentsDir() })},
		OpenInDefaultEditor: {audit.ActionShellOpen, shellPathOp((*shell.Gateway).OpenInDefaultEditor)},
		ShowInFileManager:   {audit.ActionShellOpen, shellPathOp((*shell.Gateway).ShowInFileManager)},
		ListCommands:        {audit.ActionIntrospect, noArgs(func(d *Dispatcher) (any, error) { return d.Names(), nil })},
		Ping:                {audit.ActionIntrospect, noArgs(func(*Dispatcher) (any, error) { return "pong", nil })},
	}
	return d
}

// Names returns the sorted command names.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named command with its JSON argument payload. Each call
// is independent; errors are returned in the Result, never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw json.RawMessage) Result {
	start := time.Now()
	h, ok := d.handlers[name]
	if !ok {
		err := cmderr.New(cmderr.KindUnknownCommand, "Unknown command: "+name)
		d.logger.Log(audit.Entry{Action: audit.ActionUnknown, Command: name, Err: err})
		return Result{Err: err}
	}

	details := make(map[string]interface{})
	value, err := h.run(d, ctx, raw, details)
	d.logger.Log(audit.Entry{
		Action:   h.action,
		Command:  name,
		Duration: time.Since(start),
		Err:      err,
		Details:  details,
	})
	if err != nil {
		log.Printf("command %s failed: %v", name, err)
		return Result{Err: err}
	}
	return Result{Value: value}
}

func (d *Dispatcher) readFile(_ context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args PathArgs
	if err := decodeArgs(raw, &args, "path"); err != nil {
		return nil, err
	}
	details["path"] = args.Path
	opts := args.fileOptions()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	content, err := d.gw.Files.ReadFile(args.Path, opts)
	if err != nil {
		return nil, err
	}
	details["content_len"] = len(content)
	return content, nil
}

func (d *Dispatcher) writeFile(_ context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args WriteFileArgs
	if err := decodeArgs(raw, &args, "path", "content"); err != nil {
		return nil, err
	}
	details["path"] = args.Path
	d.addContentDetails(details, args.Content)
	opts := PathArgs{Options: args.Options}.fileOptions()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return nil, d.gw.Files.WriteFile(args.Path, args.Content, opts)
}

func (d *Dispatcher) exists(_ context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args PathArgs
	if err := decodeArgs(raw, &args, "path"); err != nil {
		return nil, err
	}
	details["path"] = args.Path
	opts := args.fileOptions()
	found := false
	if err := opts.Validate(); err != nil {
		details["error"] = err.Error()
	} else {
		found = d.gw.Files.Exists(args.Path, opts)
	}
	details["exists"] = found
	return found, nil
}

func (d *Dispatcher) openFileDialog(_ context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args OpenDialogArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	path, err := d.gw.Dialogs.OpenFile(dialogOptions(args.Options))
	if err != nil {
		return nil, err
	}
	recordChoice(details, path)
	return path, nil
}

func (d *Dispatcher) saveFileDialog(_ context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args SaveDialogArgs
	if err := decodeArgs(raw, &args, "defaultName", "content"); err != nil {
		return nil, err
	}
	details["default_name"] = args.DefaultName
	d.addContentDetails(details, args.Content)
	path, err := d.gw.Dialogs.SaveFile(args.DefaultName, args.Content, dialogOptions(args.Options))
	if err != nil {
		return nil, err
	}
	recordChoice(details, path)
	return path, nil
}

func (d *Dispatcher) setWindowTitle(_ context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args SetTitleArgs
	if err := decodeArgs(raw, &args, "title"); err != nil {
		return nil, err
	}
	details["window_id"] = args.WindowID
	details["title"] = args.Title
	return nil, d.gw.Windows.SetTitle(platform.WindowID(args.WindowID), args.Title)
}

func (d *Dispatcher) showNotification(ctx context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args NotificationArgs
	if err := decodeArgs(raw, &args, "title", "body"); err != nil {
		return nil, err
	}
	details["title"] = d.logger.Preview(args.Title)
	return nil, d.gw.Shell.ShowNotification(ctx, args.Title, args.Body)
}

func (d *Dispatcher) openURL(ctx context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
	var args URLArgs
	if err := decodeArgs(raw, &args, "url"); err != nil {
		return nil, err
	}
	details["url"] = d.logger.Preview(args.URL)
	return nil, d.gw.Shell.OpenURL(ctx, args.URL)
}

func windowOp(op func(*window.Gateway, platform.WindowID) error) handlerFunc {
	return func(d *Dispatcher, _ context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
		var args WindowArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		details["window_id"] = args.WindowID
		return nil, op(d.gw.Windows, platform.WindowID(args.WindowID))
	}
}

func shellPathOp(op func(*shell.Gateway, context.Context, string) error) handlerFunc {
	return func(d *Dispatcher, ctx context.Context, raw json.RawMessage, details map[string]interface{}) (any, error) {
		var args ShellPathArgs
		if err := decodeArgs(raw, &args, "path"); err != nil {
			return nil, err
		}
		details["path"] = args.Path
		return nil, op(d.gw.Shell, ctx, args.Path)
	}
}

func noArgs(fn func(d *Dispatcher) (any, error)) handlerFunc {
	return func(d *Dispatcher, _ context.Context, raw json.RawMessage, _ map[string]interface{}) (any, error) {
		var args NoArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return fn(d)
	}
}

// decodeArgs decodes raw into dst and checks that every required key is
// present and not null.
func decodeArgs(raw json.RawMessage, dst any, required ...string) error {
	if err := options.Decode(raw, dst); err != nil {
		return err
	}
	if len(required) == 0 {
		return nil
	}
	var keys map[string]json.RawMessage
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &keys); err != nil {
			return cmderr.InvalidArgument("Invalid arguments: %v", err)
		}
	}
	for _, key := range required {
		v, ok := keys[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return cmderr.InvalidArgument("Invalid arguments: missing required key %s", key)
		}
	}
	return nil
}

func (d *Dispatcher) addContentDetails(details map[string]interface{}, content string) {
	details["content_len"] = len(content)
	details["content_preview"] = d.logger.Preview(content)
	if d.logger.IncludeContent() {
		details["content"] = content
	}
}

func recordChoice(details map[string]interface{}, path *string) {
	if path == nil {
		details["cancelled"] = true
		return
	}
	details["path"] = *path
}
