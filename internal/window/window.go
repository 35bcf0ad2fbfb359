// Package window controls the application's top-level window through a
// platform backend.
package window

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/platform"
)

// ErrNoBackend is the cause reported when no window system is available.
var ErrNoBackend = errors.New("no window system connection")

// Gateway performs window operations. A zero WindowID means the application
// window, resolved on each call.
type Gateway struct {
	backend    platform.Backend
	titleMatch string

	// toggleMu serialises query-then-act in ToggleMaximize. It may be
	// shared by every gateway built over the same window.
	toggleMu *sync.Mutex
}

// NewGateway creates a window gateway. backend may be nil, in which case
// every operation fails with a window error. titleMatch, when set, selects
// the application window by title substring instead of the active window.
// toggleMu serialises ToggleMaximize across gateways that share it; nil
// gives the gateway its own lock.
func NewGateway(backend platform.Backend, titleMatch string, toggleMu *sync.Mutex) *Gateway {
	if toggleMu == nil {
		toggleMu = new(sync.Mutex)
	}
	return &Gateway{backend: backend, titleMatch: titleMatch, toggleMu: toggleMu}
}

// Minimize iconifies the window.
func (g *Gateway) Minimize(id platform.WindowID) error {
	const msg = "Failed to minimize window"
	win, err := g.resolve(id)
	if err != nil {
		return cmderr.Window(msg, err)
	}
	if err := g.backend.Minimize(win); err != nil {
		return cmderr.Window(msg, err)
	}
	return nil
}

// ToggleMaximize maximizes the window, or restores it when it is already
// maximized.
func (g *Gateway) ToggleMaximize(id platform.WindowID) error {
	g.toggleMu.Lock()
	defer g.toggleMu.Unlock()

	win, err := g.resolve(id)
	if err != nil {
		return cmderr.Window("Failed to check window state", err)
	}
	maximized, err := g.backend.IsMaximized(win)
	if err != nil {
		return cmderr.Window("Failed to check window state", err)
	}
	if maximized {
		if err := g.backend.SetMaximized(win, false); err != nil {
			return cmderr.Window("Failed to unmaximize window", err)
		}
		return nil
	}
	if err := g.backend.SetMaximized(win, true); err != nil {
		return cmderr.Window("Failed to maximize window", err)
	}
	return nil
}

// Close requests the window to close. The application may veto the request.
func (g *Gateway) Close(id platform.WindowID) error {
	const msg = "Failed to close window"
	win, err := g.resolve(id)
	if err != nil {
		return cmderr.Window(msg, err)
	}
	if err := g.backend.Close(win); err != nil {
		return cmderr.Window(msg, err)
	}
	return nil
}

// SetTitle replaces the window's title text.
func (g *Gateway) SetTitle(id platform.WindowID, title string) error {
	const msg = "Failed to set window title"
	win, err := g.resolve(id)
	if err != nil {
		return cmderr.Window(msg, err)
	}
	if err := g.backend.SetTitle(win, title); err != nil {
		return cmderr.Window(msg, err)
	}
	return nil
}

func (g *Gateway) resolve(id platform.WindowID) (platform.WindowID, error) {
	if g.backend == nil {
		return 0, ErrNoBackend
	}
	if id != 0 {
		if !g.backend.Exists(id) {
			return 0, fmt.Errorf("window 0x%x not found", uint32(id))
		}
		return id, nil
	}
	if g.titleMatch != "" {
		return g.backend.FindWindowByTitle(g.titleMatch)
	}
	return g.backend.ActiveWindow()
}
