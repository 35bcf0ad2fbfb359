package wsbridge

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// TokenQueryParam carries the token for browser clients, which cannot set
// headers on a WebSocket handshake.
const TokenQueryParam = "token"

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// LoadOrCreateToken returns the token stored at path. A missing file is
// created with a fresh token and mode 0600; an existing file readable by
// group or others is rejected.
func LoadOrCreateToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if runtime.GOOS != "windows" {
			info, err := os.Stat(path)
			if err != nil {
				return "", err
			}
			if info.Mode().Perm()&0077 != 0 {
				return "", fmt.Errorf("token file %s must not be accessible by other users (mode %o)", path, info.Mode().Perm())
			}
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("token file %s is empty", path)
		}
		return token, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create token dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create token file: %w", err)
	}
	if _, err := f.WriteString(token + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write token file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write token file: %w", err)
	}
	return token, nil
}

func hashToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

// requestToken reads the token from "Authorization: Bearer" or the token
// query parameter.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, value, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
	}
	return r.URL.Query().Get(TokenQueryParam)
}

// authorized reports whether r carries the configured token. With no token
// configured every request passes.
func (s *Server) authorized(r *http.Request) bool {
	if s.tokenHash == nil {
		return true
	}
	token := requestToken(r)
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare(hashToken(token), s.tokenHash) == 1
}
