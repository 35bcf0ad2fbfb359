package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
)

const (
	stateMaxHorz = "_NET_WM_STATE_MAXIMIZED_HORZ"
	stateMaxVert = "_NET_WM_STATE_MAXIMIZED_VERT"
)

// GetActiveWindow returns the window named by _NET_ACTIVE_WINDOW.
func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	win, err := ewmh.ActiveWindowGet(c.XUtil)
	if err != nil {
		return 0, err
	}
	if win == 0 {
		return 0, fmt.Errorf("no active window")
	}
	return win, nil
}

// FindWindowByTitle searches the EWMH client list for a window whose
// title contains the given substring, ignoring case. Returns the first match.
func (c *Connection) FindWindowByTitle(substring string) (xproto.Window, error) {
	if substring == "" {
		return 0, fmt.Errorf("empty title substring")
	}
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get client list: %w", err)
	}
	for _, win := range clients {
		if titleMatches(c.WindowTitle(win), substring) {
			return win, nil
		}
	}
	return 0, fmt.Errorf("no window found with title containing %q", substring)
}

// WindowTitle returns _NET_WM_NAME, falling back to WM_NAME.
func (c *Connection) WindowTitle(win xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, win); err == nil && strings.TrimSpace(title) != "" {
		return title
	}
	if title, err := icccm.WmNameGet(c.XUtil, win); err == nil {
		return title
	}
	return ""
}

// WindowExists reports whether the server still knows the window.
func (c *Connection) WindowExists(win xproto.Window) bool {
	_, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(win)).Reply()
	return err == nil
}

// IsMaximized reports whether the window carries both maximized states.
func (c *Connection) IsMaximized(win xproto.Window) (bool, error) {
	states, err := ewmh.WmStateGet(c.XUtil, win)
	if err != nil {
		return false, err
	}

	hasMaxH := false
	hasMaxV := false
	for _, state := range states {
		switch state {
		case stateMaxHorz:
			hasMaxH = true
		case stateMaxVert:
			hasMaxV = true
		}
	}
	return hasMaxH && hasMaxV, nil
}

// SetMaximized asks the window manager to add or remove both maximized
// states in a single _NET_WM_STATE client message.
func (c *Connection) SetMaximized(win xproto.Window, maximized bool) error {
	action := ewmh.StateRemove
	if maximized {
		action = ewmh.StateAdd
	}
	return ewmh.WmStateReqExtra(c.XUtil, win, action, stateMaxHorz, stateMaxVert, 1)
}

// Iconify minimizes a window via WM_CHANGE_STATE.
func (c *Connection) Iconify(win xproto.Window) error {
	changeState, err := xprop.Atom(c.XUtil, "WM_CHANGE_STATE", false)
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   changeState,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{icccm.StateIconic, 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// RequestClose asks the client to close via WM_DELETE_WINDOW. The
// application may still refuse.
func (c *Connection) RequestClose(win xproto.Window) error {
	deleteAtom, err := xprop.Atom(c.XUtil, "WM_DELETE_WINDOW", false)
	if err != nil {
		return err
	}
	protocolsAtom, err := xprop.Atom(c.XUtil, "WM_PROTOCOLS", false)
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   protocolsAtom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(deleteAtom), 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		win,
		xproto.EventMaskNoEvent,
		string(ev.Bytes()),
	).Check()
}

// SetTitle writes both _NET_WM_NAME and the legacy WM_NAME.
func (c *Connection) SetTitle(win xproto.Window, title string) error {
	if err := ewmh.WmNameSet(c.XUtil, win, title); err != nil {
		return fmt.Errorf("set _NET_WM_NAME: %w", err)
	}
	if err := icccm.WmNameSet(c.XUtil, win, title); err != nil {
		return fmt.Errorf("set WM_NAME: %w", err)
	}
	return nil
}

func titleMatches(title, substring string) bool {
	return strings.Contains(strings.ToLower(title), strings.ToLower(substring))
}
