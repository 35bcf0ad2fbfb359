package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/deskhost/internal/commands"
)

type toolSpec struct {
	name        string
	description string
	add         func(s *Server, name, description string)
}

var tools = []toolSpec{
	{commands.ReadFile, "Read a UTF-8 text file and return its full content.", addTool[commands.PathArgs]},
	{commands.WriteFile, "Create or overwrite a text file with the given content.", addTool[commands.WriteFileArgs]},
	{commands.Exists, "Report whether a file or directory exists at the path. Never fails.", addTool[commands.PathArgs]},
	{commands.OpenFileDialog, "Show the native open dialog and return the chosen absolute path, or null if the user cancelled. Blocks until the user answers.", addTool[commands.OpenDialogArgs]},
	{commands.SaveFileDialog, "Show the native save dialog pre-filled with defaultName and write content to the chosen path. Returns the path, or null if the user cancelled (nothing is written).", addTool[commands.SaveDialogArgs]},
	{commands.MinimizeWindow, "Minimize the application window.", addTool[commands.WindowArgs]},
	{commands.MaximizeWindow, "Toggle the application window between maximized and restored.", addTool[commands.WindowArgs]},
	{commands.CloseWindow, "Ask the application window to close.", addTool[commands.WindowArgs]},
	{commands.SetWindowTitle, "Set the title of the application window.", addTool[commands.SetTitleArgs]},
	{commands.ShowNotification, "Show a desktop notification.", addTool[commands.NotificationArgs]},
	{commands.OpenURL, "Open a URL in the default browser or mail client.", addTool[commands.URLArgs]},
	{commands.GetAppDataDir, "Return the per-application data directory.", addTool[commands.NoArgs]},
	{commands.GetDocumentsDir, "Return the user's documents directory.", addTool[commands.NoArgs]},
	{commands.OpenInDefaultEditor, "Open an existing file in the user's editor.", addTool[commands.ShellPathArgs]},
	{commands.ShowInFileManager, "Reveal an existing file in the system file manager.", addTool[commands.ShellPathArgs]},
	{commands.ListCommands, "List the available command names.", addTool[commands.NoArgs]},
	{commands.Ping, "Check that the desktop host is responding.", addTool[commands.NoArgs]},
}

func (s *Server) registerTools() {
	for _, t := range tools {
		t.add(s, t.name, t.description)
	}
}

// addTool registers a tool whose input schema is inferred from In.
func addTool[In any](s *Server, name, description string) {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args In) (*mcpsdk.CallToolResult, any, error) {
		return s.call(ctx, name, args)
	})
}
