// Package config loads the optional TOML configuration file and applies
// defaults. Flags set on the CLI override anything read from the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the derivekit configuration.
type Config struct {
	// DataDir is the root for file-backed sessions and results.
	DataDir string `toml:"data_dir"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// ComputeTimeout bounds each delegated computation, e.g. "30s".
	ComputeTimeout string `toml:"compute_timeout"`

	Redis RedisConfig `toml:"redis"`
	HTTP  HTTPConfig  `toml:"http"`
}

// RedisConfig selects the Redis backend when Address is set.
type RedisConfig struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// HTTPConfig configures the HTTP adapter.
type HTTPConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:        ".derivekit",
		LogLevel:       "info",
		ComputeTimeout: "30s",
		HTTP:           HTTPConfig{Listen: ":8080"},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "derivekit.toml"
	}
	return filepath.Join(dir, "derivekit", "config.toml")
}

// Load reads the file at path over the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SessionsDir returns the directory for file-backed sessions.
func (c Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// ResultsDir returns the directory for archived results.
func (c Config) ResultsDir() string {
	return filepath.Join(c.DataDir, "results")
}

// Timeout parses ComputeTimeout, falling back to 30s on nonsense.
func (c Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.ComputeTimeout)
	if err != nil || d < 0 {
		return 30 * time.Second
	}
	return d
}
