// Package config holds the settings of the pg2neo converter.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/g2gml/pg/staging"
)

// Config is the top-level configuration
type Config struct {
	// Parallel is the number of workers; zero or less means one per CPU
	Parallel   int           `yaml:"parallel"`
	BatchLines int           `yaml:"batch_lines"`
	ChunkBytes int           `yaml:"chunk_bytes"`
	Staging    StagingConfig `yaml:"staging"`
	Output     OutputConfig  `yaml:"output"`
	Logging    LoggingConfig `yaml:"logging"`
}

// StagingConfig selects where workers keep parsed records between phases
type StagingConfig struct {
	Mode string `yaml:"mode"` // file, sqlite, none
	Dir  string `yaml:"dir"`  // empty means the system temp dir
}

// OutputConfig names the output tables
type OutputConfig struct {
	// Prefix is joined with ".neo.nodes" and ".neo.edges". Empty means the
	// input path without its extension.
	Prefix string `yaml:"prefix"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Parallel:   0,
		BatchLines: 1000,
		ChunkBytes: 1_000_000,
		Staging: StagingConfig{
			Mode: string(staging.File),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies PG2NEO_* environment variables
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PG2NEO_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PG2NEO_PARALLEL %q: %w", v, err)
		}
		c.Parallel = n
	}
	if v := os.Getenv("PG2NEO_STAGING"); v != "" {
		c.Staging.Mode = v
	}
	if v := os.Getenv("PG2NEO_TMPDIR"); v != "" {
		c.Staging.Dir = v
	}
	if v := os.Getenv("PG2NEO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// ValidLogFormats lists the supported log formats
var ValidLogFormats = []string{"text", "json"}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BatchLines <= 0 {
		return fmt.Errorf("batch_lines must be positive, got %d", c.BatchLines)
	}
	if c.ChunkBytes <= 0 {
		return fmt.Errorf("chunk_bytes must be positive, got %d", c.ChunkBytes)
	}
	if _, err := staging.ParseKind(c.Staging.Mode); err != nil {
		return fmt.Errorf("invalid staging mode: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if !isValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidLogFormats {
		if strings.EqualFold(format, f) {
			return true
		}
	}
	return false
}

// Workers resolves Parallel to a positive worker count
func (c *Config) Workers() int {
	if c.Parallel <= 0 {
		return runtime.NumCPU()
	}
	return c.Parallel
}

// StagingKind returns the configured staging kind
func (c *Config) StagingKind() staging.Kind {
	k, err := staging.ParseKind(c.Staging.Mode)
	if err != nil {
		return staging.File
	}
	return k
}

// NewLogger builds a logger writing to out with the configured level and format
func (l LoggingConfig) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if strings.EqualFold(l.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
