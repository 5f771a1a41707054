// Package config holds the settings for a batch run. Every value has a
// compiled-in default matching the Hedra service contract; an optional TOML
// file can override the non-contractual ones (endpoint, timing, patterns).
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	// EnvAPIKey is the environment variable consulted when no API key is
	// passed on the command line.
	EnvAPIKey = "HEDRA_API_KEY"

	// EnvLogLevel overrides the configured log level: debug, info, warn, error.
	EnvLogLevel = "HEDRA_LOG_LEVEL"
)

// API configures the Hedra endpoint and polling behavior.
type API struct {
	BaseURL string `toml:"base_url"`
	// WaitTimeout is the maximum wall-clock seconds a single video job may
	// spend in polling before it is treated as failed.
	WaitTimeout int `toml:"wait_timeout"`
	// PollInterval is the seconds slept between successive status checks.
	PollInterval int `toml:"poll_interval"`
}

// Files configures input discovery and output naming.
type Files struct {
	ImagePattern string `toml:"image_pattern"`
	AudioPattern string `toml:"audio_pattern"`
	OutputExt    string `toml:"output_ext"`
}

// Logging configures the run log.
type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config is the full configuration for one batch run.
type Config struct {
	API     API     `toml:"api"`
	Files   Files   `toml:"files"`
	Logging Logging `toml:"logging"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:      "https://api.hedra.ai/v1",
			WaitTimeout:  300,
			PollInterval: 10,
		},
		Files: Files{
			ImagePattern: "*.png",
			AudioPattern: "*.wav",
			OutputExt:    ".mp4",
		},
		Logging: Logging{
			Level: "info",
			File:  "hedra_batch.log",
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path. An empty
// path returns the defaults unchanged; a missing file is an error (the user
// asked for a specific file).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks invariants a config file could break.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must not be empty")
	}
	if c.API.WaitTimeout <= 0 {
		return errors.New("api.wait_timeout must be positive")
	}
	if c.API.PollInterval <= 0 {
		return errors.New("api.poll_interval must be positive")
	}
	if c.API.PollInterval > c.API.WaitTimeout {
		return errors.New("api.poll_interval must not exceed api.wait_timeout")
	}
	if c.Files.ImagePattern == "" || c.Files.AudioPattern == "" {
		return errors.New("files.image_pattern and files.audio_pattern must not be empty")
	}
	if c.Files.OutputExt == "" {
		return errors.New("files.output_ext must not be empty")
	}
	if c.Logging.File == "" {
		return errors.New("logging.file must not be empty")
	}
	return nil
}

// WaitTimeoutDuration returns the overall per-job poll timeout.
func (c *Config) WaitTimeoutDuration() time.Duration {
	return time.Duration(c.API.WaitTimeout) * time.Second
}

// PollIntervalDuration returns the interval between status checks.
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.API.PollInterval) * time.Second
}

// Sample returns the embedded sample configuration file.
func Sample() string {
	return sampleConfig
}
