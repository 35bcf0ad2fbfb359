package platform

import "errors"

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// ErrUnsupported is returned by Open on platforms without a window backend.
var ErrUnsupported = errors.New("window control is not supported on this platform")

// Backend abstracts window-system operations across platforms.
type Backend interface {
	ActiveWindow() (WindowID, error)
	FindWindowByTitle(substring string) (WindowID, error)
	Exists(windowID WindowID) bool
	IsMaximized(windowID WindowID) (bool, error)
	SetMaximized(windowID WindowID, maximized bool) error
	Minimize(windowID WindowID) error
	Close(windowID WindowID) error
	SetTitle(windowID WindowID, title string) error
}

// Pinger is implemented by backends that can verify their connection to
// the window system.
type Pinger interface {
	Ping() error
}
