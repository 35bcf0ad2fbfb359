package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/deskhost/internal/commands"
	"github.com/1broseidon/deskhost/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath  string
	dialTimeout time.Duration
}

// NewClient creates a client for the default socket path.
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; Call surfaces connection errors.
		socketPath = ""
	}
	return NewClientForSocket(socketPath)
}

// NewClientForSocket creates a client for an explicit socket path.
func NewClientForSocket(socketPath string) *Client {
	return &Client{
		socketPath:  socketPath,
		dialTimeout: 5 * time.Second,
	}
}

// Call runs command on the daemon and returns the raw JSON result. args may
// be nil, a json.RawMessage, or any JSON-encodable value. A failed command is
// returned as an error carrying the daemon's message and kind.
//
// There is no response timeout: a dialog waits for the user. Cancel ctx to
// give up.
func (c *Client) Call(ctx context.Context, command string, args any) (json.RawMessage, error) {
	payload, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}
	resp, err := c.sendRequest(ctx, &Request{
		ID:      uuid.NewString(),
		Command: command,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Dispatch forwards a command to the daemon so a Client can stand in for an
// in-process dispatcher.
func (c *Client) Dispatch(ctx context.Context, name string, raw json.RawMessage) commands.Result {
	data, err := c.Call(ctx, name, raw)
	if err != nil {
		return commands.Result{Err: err}
	}
	return commands.Result{Value: data}
}

var _ Dispatcher = (*Client)(nil)

// Reload asks the daemon to re-read its configuration.
func (c *Client) Reload(ctx context.Context) error {
	_, err := c.Call(ctx, CommandReload, nil)
	return err
}

// Ping checks if the daemon is responding
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping", nil)
	return err
}

// sendRequest sends a request and waits for its response
func (c *Client) sendRequest(ctx context.Context, req *Request) (*Response, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	for {
		respData, err := reader.ReadBytes('\n')
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var resp Response
		if err := json.Unmarshal(respData, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.ID == "" || resp.ID == req.ID {
			return &resp, nil
		}
	}
}

func encodeArgs(args any) (json.RawMessage, error) {
	switch v := args.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal arguments: %w", err)
		}
		return data, nil
	}
}
