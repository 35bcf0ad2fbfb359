// Package runtimepath locates per-user runtime files such as the daemon
// socket.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// SocketEnv overrides the socket path for both the daemon and its clients.
const SocketEnv = "DESKHOST_SOCKET"

const (
	socketName      = "deskhost.sock"
	bridgeTokenName = "deskhost-bridge.token"
)

// Dir returns the per-user runtime directory: $XDG_RUNTIME_DIR, then
// /run/user/<uid>, then a private directory under the system temp dir.
func Dir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}

	uid := os.Getuid()
	if uid >= 0 {
		runUser := filepath.Join("/run/user", strconv.Itoa(uid))
		if info, err := os.Stat(runUser); err == nil && info.IsDir() {
			return runUser, nil
		}
	}
	return privateTempDir(uid)
}

// privateTempDir creates (or reuses) a 0700 directory under os.TempDir.
// uid is -1 on Windows.
func privateTempDir(uid int) (string, error) {
	name := "deskhost-runtime"
	if uid >= 0 {
		name += "-" + strconv.Itoa(uid)
	}
	dir := filepath.Join(os.TempDir(), name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}

	info, err := os.Lstat(dir)
	if err != nil {
		return "", fmt.Errorf("failed to stat runtime dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("runtime dir %s is not a directory", dir)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0077 != 0 {
		if err := os.Chmod(dir, 0700); err != nil {
			return "", fmt.Errorf("failed to restrict runtime dir: %w", err)
		}
	}
	return dir, nil
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) {
	if p := os.Getenv(SocketEnv); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, socketName), nil
}

// BridgeTokenPath returns the default location of the websocket bridge token.
func BridgeTokenPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, bridgeTokenName), nil
}
