package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/commands"
)

const (
	ServerName    = "deskhost"
	ServerVersion = "0.1.0"
)

// Dispatcher runs a named command. Both the in-process command dispatcher
// and an ipc.Client forwarding to the daemon satisfy it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, raw json.RawMessage) commands.Result
}

// Server exposes the desktop commands as MCP tools.
type Server struct {
	mcpServer  *mcpsdk.Server
	dispatcher Dispatcher
	onClose    func() error
}

// NewServer creates an MCP server that runs every tool through d. onClose,
// if non-nil, is called by Close.
func NewServer(d Dispatcher, onClose func() error) *Server {
	s := &Server{
		dispatcher: d,
		onClose:    onClose,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases server resources.
func (s *Server) Close() error {
	if s == nil || s.onClose == nil {
		return nil
	}
	return s.onClose()
}

// call encodes args, dispatches the command and renders its result as JSON
// text. Command failures become tool errors prefixed with their kind.
func (s *Server) call(ctx context.Context, name string, args any) (*mcpsdk.CallToolResult, any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	res := s.dispatcher.Dispatch(ctx, name, raw)
	if res.Err != nil {
		if kind := cmderr.KindOf(res.Err); kind != "" {
			return nil, nil, fmt.Errorf("%s: %w", kind, res.Err)
		}
		return nil, nil, res.Err
	}

	text, err := json.Marshal(res.Value)
	if err != nil {
		log.Printf("MCP: failed to encode %s result: %v", name, err)
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(text)}},
	}, nil, nil
}
