package cmderr

import (
	"errors"
	"fmt"
)

// Kind classifies a command failure for clients that want to branch on it
// without parsing the message.
type Kind string

const (
	KindIO              Kind = "IoError"
	KindWindow          Kind = "WindowError"
	KindNotification    Kind = "NotificationError"
	KindShell           Kind = "ShellError"
	KindPathResolution  Kind = "PathResolutionError"
	KindInvalidArgument Kind = "InvalidArgumentError"
	KindUnknownCommand  Kind = "UnknownCommandError"
)

// Error is a command failure. Message is the display text ("Failed to read
// file"); Err is the underlying cause and may be nil.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IO wraps a filesystem failure.
func IO(message string, err error) *Error { return Wrap(KindIO, message, err) }

// Window wraps a window-manager failure.
func Window(message string, err error) *Error { return Wrap(KindWindow, message, err) }

// Notification wraps a notification failure.
func Notification(message string, err error) *Error { return Wrap(KindNotification, message, err) }

// Shell wraps a URL or file opener failure.
func Shell(message string, err error) *Error { return Wrap(KindShell, message, err) }

// PathResolution wraps a standard directory lookup failure.
func PathResolution(message string, err error) *Error {
	return Wrap(KindPathResolution, message, err)
}

// InvalidArgument reports a payload rejected at the command boundary.
func InvalidArgument(format string, args ...any) *Error {
	return New(KindInvalidArgument, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// carries none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
