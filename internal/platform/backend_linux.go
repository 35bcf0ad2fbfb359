//go:build linux

package platform

import (
	"fmt"

	"github.com/1broseidon/deskhost/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
}

var (
	_ Backend = (*LinuxBackend)(nil)
	_ Pinger  = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// Open connects to the X server named by display ($DISPLAY when empty) and
// returns the backend with a function that disconnects it.
func Open(display string) (Backend, func(), error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	b := &LinuxBackend{conn: conn}
	return b, b.Disconnect, nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// Ping checks that the X server still answers.
func (b *LinuxBackend) Ping() error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Ping()
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	wid, err := conn.GetActiveWindow()
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

// FindWindowByTitle returns the first client window whose title contains substring.
func (b *LinuxBackend) FindWindowByTitle(substring string) (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	wid, err := conn.FindWindowByTitle(substring)
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

func (b *LinuxBackend) Exists(windowID WindowID) bool {
	conn, err := b.connection()
	if err != nil {
		return false
	}
	return conn.WindowExists(xproto.Window(windowID))
}

func (b *LinuxBackend) IsMaximized(windowID WindowID) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	return conn.IsMaximized(xproto.Window(windowID))
}

func (b *LinuxBackend) SetMaximized(windowID WindowID, maximized bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetMaximized(xproto.Window(windowID), maximized)
}

// Minimize minimizes a window via WM_CHANGE_STATE.
func (b *LinuxBackend) Minimize(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Iconify(xproto.Window(windowID))
}

// Close requests graceful window close via WM_DELETE_WINDOW.
func (b *LinuxBackend) Close(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.RequestClose(xproto.Window(windowID))
}

func (b *LinuxBackend) SetTitle(windowID WindowID, title string) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetTitle(xproto.Window(windowID), title)
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}
