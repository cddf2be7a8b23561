package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/.cache/navagent
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// ErrProtectedPath is returned by ResolveRemovable for paths that must never be
// recursively deleted.
var ErrProtectedPath = errors.New("protected path")

// ResolveRemovable expands and cleans path and refuses the filesystem root,
// the home directory itself and relative paths that resolve to the working
// directory.
func ResolveRemovable(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty", ErrProtectedPath)
	}
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	abs = filepath.Clean(abs)
	if abs == filepath.Dir(abs) {
		return "", fmt.Errorf("%w: %s", ErrProtectedPath, abs)
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == abs {
		return "", fmt.Errorf("%w: %s", ErrProtectedPath, abs)
	}
	if wd, err := os.Getwd(); err == nil && filepath.Clean(wd) == abs {
		return "", fmt.Errorf("%w: %s", ErrProtectedPath, abs)
	}
	return abs, nil
}
