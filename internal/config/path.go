package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns where the dead-letter store lives when no dataDir
// is configured. XDG_DATA_HOME wins, then the platform's usual location,
// then ~/.floq. Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "floq")
	}
	candidates := []struct{ probe, dir string }{
		{"/var/lib", "/var/lib/floq"},
		{filepath.Join(home, "Library"), filepath.Join(home, "Library", "Application Support", "Floq")},
		{filepath.Join(home, "AppData"), filepath.Join(home, "AppData", "Local", "Floq")},
	}
	for _, c := range candidates {
		if isDir(c.probe) {
			return c.dir
		}
	}
	return filepath.Join(home, ".floq")
}

// ResolvedDataDir returns c.DataDir, or DefaultDataDir() when unset.
func (c Config) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
