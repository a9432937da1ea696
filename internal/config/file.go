package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
)

// Config mirrors config.toml.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Import   ImportConfig   `toml:"import"`
	Validate ValidateConfig `toml:"validate"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig locates the catalog file. An empty path means GetDBPath.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ImportConfig tunes the bulk importer.
type ImportConfig struct {
	StreamThreshold string `toml:"stream_threshold"`
	BatchSize       int    `toml:"batch_size"`
	ProgressEvery   int    `toml:"progress_every"`
	GCEvery         int    `toml:"gc_every"`
}

// ValidateConfig holds deck validation defaults.
type ValidateConfig struct {
	Format string `toml:"format"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Import: ImportConfig{
			StreamThreshold: "100 MB",
			BatchSize:       500,
			ProgressEvery:   1000,
			GCEvery:         5000,
		},
		Validate: ValidateConfig{
			Format: "standard-commander",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
// An empty path means GetConfigPath.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = GetConfigPath()
	}

	//nolint:gosec // G304: path is chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Check validates value ranges.
func (c *Config) Check() error {
	if _, err := c.StreamThresholdBytes(); err != nil {
		return err
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize)
	}
	if c.Import.ProgressEvery < 0 {
		return fmt.Errorf("import.progress_every must not be negative, got %d", c.Import.ProgressEvery)
	}
	if c.Import.GCEvery < 0 {
		return fmt.Errorf("import.gc_every must not be negative, got %d", c.Import.GCEvery)
	}
	switch c.Validate.Format {
	case "standard-commander", "pauper-commander":
	default:
		return fmt.Errorf("validate.format must be standard-commander or pauper-commander, got %q", c.Validate.Format)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// StreamThresholdBytes parses the human-readable import threshold.
func (c *Config) StreamThresholdBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.Import.StreamThreshold)
	if err != nil {
		return 0, fmt.Errorf("import.stream_threshold %q: %w", c.Import.StreamThreshold, err)
	}
	return int64(n), nil
}

// DBPath returns the configured catalog path or the default location.
func (c *Config) DBPath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return GetDBPath()
}
