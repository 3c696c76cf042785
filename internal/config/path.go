package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.yaml location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "parley", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "parley", "config.yaml"), nil
}

// RuntimeDir returns $XDG_RUNTIME_DIR, or a per-user temp dir when unset.
func RuntimeDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "parley-"+strconv.Itoa(os.Getuid()))
}

func defaultScratchDir() string {
	return filepath.Join(RuntimeDir(), "parley", "scratch")
}

func defaultResponseFile() string {
	return filepath.Join(RuntimeDir(), "parley", "response.wav")
}
