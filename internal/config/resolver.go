package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// FileName is the configuration file looked up by ResolvePath.
const FileName = "utsuwa.yaml"

// Resolve returns a sorted list of module IDs from the configuration.
// The deterministic order ensures consistent module loading.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SearchPaths lists the locations ResolvePath tries, in order.
// $XDG_CONFIG_HOME/utsuwa/utsuwa.yaml → ~/.config/utsuwa/utsuwa.yaml → ./utsuwa.yaml
func SearchPaths() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "utsuwa", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "utsuwa", FileName))
	}
	return append(candidates, FileName)
}

// ResolvePath returns the first existing file among SearchPaths.
func ResolvePath() (string, error) {
	candidates := SearchPaths()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("config: no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/utsuwa if set, otherwise ~/.local/share/utsuwa.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "utsuwa")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "utsuwa")
}
