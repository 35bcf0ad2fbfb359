package ipc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/commands"
)

// CommandReload re-reads the configuration. It is handled by the server
// itself rather than the command dispatcher.
const CommandReload = "reload"

const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Request represents an IPC request from client to server
type Request struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	ID     string          `json:"id,omitempty"`
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   cmderr.Kind     `json:"kind,omitempty"`
}

// Dispatcher runs a named command.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, raw json.RawMessage) commands.Result
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: StatusOK,
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: StatusError,
		Error:  errMsg,
	}
}

// FromResult converts a command result into a response.
func FromResult(res commands.Result) *Response {
	if res.Err != nil {
		resp := NewErrorResponse(res.Err.Error())
		resp.Kind = cmderr.KindOf(res.Err)
		return resp
	}
	resp, err := NewOKResponse(res.Value)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// Err returns the command error carried by an ERROR response, or nil.
func (r *Response) Err() error {
	if r.Status != StatusError {
		return nil
	}
	return cmderr.New(r.Kind, r.Error)
}

// Handle runs one request against d. Requests without an id get a fresh one
// so responses can always be correlated.
func Handle(ctx context.Context, d Dispatcher, req *Request) *Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	var resp *Response
	if req.Command == "" {
		resp = NewErrorResponse("Invalid request: command is required")
		resp.Kind = cmderr.KindInvalidArgument
	} else {
		resp = FromResult(d.Dispatch(ctx, req.Command, req.Payload))
	}
	resp.ID = req.ID
	return resp
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
