package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	closeOnce sync.Once
}

// NewConnection connects to the X server named by display, or $DISPLAY when
// display is empty.
func NewConnection(display string) (*Connection, error) {
	var (
		xu  *xgbutil.XUtil
		err error
	)
	if display == "" {
		xu, err = xgbutil.NewConn()
	} else {
		xu, err = xgbutil.NewConnDisplay(display)
	}
	if err != nil {
		return nil, err
	}

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// Ping makes a round trip to the server. xgb closes its request channel
// after a read error, so requests on a dead connection panic; that is
// reported as an error.
func (c *Connection) Ping() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("x11 connection closed: %v", r)
		}
	}()
	_, err = xproto.GetInputFocus(c.XUtil.Conn()).Reply()
	return err
}

// Close cleanly disconnects from the X11 server. It is safe to call on a
// connection xgb already shut down.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		defer func() { _ = recover() }()
		c.XUtil.Conn().Close()
	})
}
