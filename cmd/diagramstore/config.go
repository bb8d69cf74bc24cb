package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flowkit/diagramstore/diagramstore/quota"
)

// config is the optional CLI configuration file.
type config struct {
	// StoreDir is the store directory used when --store is not passed.
	StoreDir string `yaml:"store_dir"`

	// QuotaBytes caps the file backend; 0 means unlimited.
	QuotaBytes int64 `yaml:"quota_bytes"`

	// CleanupPrefixes overrides the low-priority key prefixes quota
	// cleanup may reclaim, in priority order.
	CleanupPrefixes []string `yaml:"cleanup_prefixes"`
}

// loadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields a zero config, not an error.
func loadConfig(path string) (config, error) {
	if path == "" {
		path = filepath.Join(defaultConfigDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config{}, nil
	}
	if err != nil {
		return config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c config) cleanupPatterns() []quota.Pattern {
	if len(c.CleanupPrefixes) == 0 {
		return nil
	}
	patterns := make([]quota.Pattern, len(c.CleanupPrefixes))
	for i, prefix := range c.CleanupPrefixes {
		patterns[i] = quota.Pattern{Prefix: prefix}
	}
	return patterns
}

// defaultConfigDir resolves the XDG config directory for diagramstore.
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "diagramstore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "diagramstore")
	}
	return filepath.Join(home, ".config", "diagramstore")
}
