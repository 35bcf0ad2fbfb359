package userdirs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// BaseDir names a well-known per-user directory that relative file paths can
// be resolved against.
type BaseDir string

const (
	BaseApp          BaseDir = "app"
	BaseAppData      BaseDir = "app-data"
	BaseAppLocalData BaseDir = "app-local-data"
	BaseAppConfig    BaseDir = "app-config"
	BaseAppCache     BaseDir = "app-cache"
	BaseAppLog       BaseDir = "app-log"
	BaseDocument     BaseDir = "document"
	BaseDownload     BaseDir = "download"
	BaseDesktop      BaseDir = "desktop"
	BaseHome         BaseDir = "home"
	BasePicture      BaseDir = "picture"
	BasePublic       BaseDir = "public"
	BaseMusic        BaseDir = "music"
	BaseVideo        BaseDir = "video"
)

var knownBaseDirs = map[BaseDir]struct{}{
	BaseApp: {}, BaseAppData: {}, BaseAppLocalData: {}, BaseAppConfig: {},
	BaseAppCache: {}, BaseAppLog: {}, BaseDocument: {}, BaseDownload: {},
	BaseDesktop: {}, BaseHome: {}, BasePicture: {}, BasePublic: {},
	BaseMusic: {}, BaseVideo: {},
}

// Valid reports whether b is a known base directory.
func (b BaseDir) Valid() bool {
	_, ok := knownBaseDirs[b]
	return ok
}

// xdgUserDirKeys maps base directories to their user-dirs.dirs keys and the
// fallback folder name under $HOME.
var xdgUserDirKeys = map[BaseDir][2]string{
	BaseDocument: {"XDG_DOCUMENTS_DIR", "Documents"},
	BaseDownload: {"XDG_DOWNLOAD_DIR", "Downloads"},
	BaseDesktop:  {"XDG_DESKTOP_DIR", "Desktop"},
	BasePicture:  {"XDG_PICTURES_DIR", "Pictures"},
	BasePublic:   {"XDG_PUBLICSHARE_DIR", "Public"},
	BaseMusic:    {"XDG_MUSIC_DIR", "Music"},
	BaseVideo:    {"XDG_VIDEOS_DIR", "Videos"},
}

// AppDataDir returns the per-user application data directory for appID.
// The directory is not created.
func AppDataDir(appID string) (string, error) {
	if strings.TrimSpace(appID) == "" {
		return "", fmt.Errorf("application id is empty")
	}
	base, err := dataHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appID), nil
}

// DocumentsDir returns the user's documents directory.
func DocumentsDir() (string, error) {
	return userDir(BaseDocument)
}

// Resolve returns the absolute directory for base. appID is used for the
// application-scoped bases.
func Resolve(base BaseDir, appID string) (string, error) {
	switch base {
	case BaseAppData, BaseAppLocalData:
		return AppDataDir(appID)
	case BaseApp, BaseAppConfig:
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appID), nil
	case BaseAppCache:
		dir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appID), nil
	case BaseAppLog:
		if runtime.GOOS == "darwin" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, "Library", "Logs", appID), nil
		}
		dir, err := AppDataDir(appID)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "logs"), nil
	case BaseHome:
		return os.UserHomeDir()
	default:
		if _, ok := xdgUserDirKeys[base]; ok {
			return userDir(base)
		}
		return "", fmt.Errorf("unknown base directory %q", base)
	}
}

func dataHome() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("APPDATA"); dir != "" {
			return dir, nil
		}
		return "", fmt.Errorf("%%APPDATA%% is not set")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" && filepath.IsAbs(dir) {
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}

// userDir resolves an XDG user directory. Priority:
// 1) the XDG_*_DIR environment variable
// 2) the entry in $XDG_CONFIG_HOME/user-dirs.dirs
// 3) $HOME/<Fallback>
func userDir(base BaseDir) (string, error) {
	keys, ok := xdgUserDirKeys[base]
	if !ok {
		return "", fmt.Errorf("unknown user directory %q", base)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		if dir := os.Getenv(keys[0]); dir != "" {
			return expandHome(dir, home), nil
		}
		if dir, ok := lookupUserDirsFile(keys[0], home); ok {
			return dir, nil
		}
	}
	return filepath.Join(home, keys[1]), nil
}

func lookupUserDirsFile(key, home string) (string, bool) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	f, err := os.Open(filepath.Join(configHome, "user-dirs.dirs"))
	if err != nil {
		return "", false
	}
	defer f.Close()
	return parseUserDirs(bufio.NewScanner(f), key, home)
}

// parseUserDirs reads lines of the form XDG_DOCUMENTS_DIR="$HOME/Documents".
func parseUserDirs(scanner *bufio.Scanner, key, home string) (string, bool) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) != key {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if value == "" {
			return "", false
		}
		dir := expandHome(value, home)
		if !filepath.IsAbs(dir) {
			return "", false
		}
		return dir, true
	}
	return "", false
}

func expandHome(p, home string) string {
	switch {
	case p == "$HOME" || p == "~":
		return home
	case strings.HasPrefix(p, "$HOME/"):
		return filepath.Join(home, p[len("$HOME/"):])
	case strings.HasPrefix(p, "~/"):
		return filepath.Join(home, p[2:])
	}
	return p
}
