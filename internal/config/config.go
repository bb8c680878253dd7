// Package config loads gpustream settings from a YAML file with
// environment overrides, and builds the process logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/born-ml/gpustream/internal/interop"
	"github.com/born-ml/gpustream/internal/native"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultBackend    = "sim"
	defaultEngineKind = "gpu"
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"

	envBackend    = "GPUSTREAM_BACKEND"
	envEngineKind = "GPUSTREAM_ENGINE_KIND"
	envLogLevel   = "GPUSTREAM_LOG_LEVEL"
	envLogFormat  = "GPUSTREAM_LOG_FORMAT"
)

// Config holds gpustream settings.
type Config struct {
	Backend    string   `yaml:"backend"`     // Runtime name (sim, webgpu)
	EngineKind string   `yaml:"engine_kind"` // gpu or cpu
	Device     int      `yaml:"device"`      // Index into the runtime's device list
	Flags      []string `yaml:"flags"`       // Stream flags (in-order, out-of-order)
	LogLevel   string   `yaml:"log_level"`
	LogFormat  string   `yaml:"log_format"` // text or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:    defaultBackend,
		EngineKind: defaultEngineKind,
		Flags:      []string{"in-order"},
		LogLevel:   defaultLogLevel,
		LogFormat:  defaultLogFormat,
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. An empty path, or a path that does not exist,
// yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(envEngineKind); v != "" {
		c.EngineKind = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envLogFormat); v != "" {
		c.LogFormat = v
	}
}

// Validate checks that every field holds a supported value.
func (c Config) Validate() error {
	if c.Backend == "" {
		return errors.New("config: backend is required")
	}
	if _, err := c.Kind(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Device < 0 {
		return fmt.Errorf("config: device index %d is negative", c.Device)
	}
	if _, err := c.StreamFlags(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// Kind returns the configured engine kind.
func (c Config) Kind() (native.Kind, error) {
	return native.ParseKind(strings.ToLower(c.EngineKind))
}

// StreamFlags returns the configured stream flags. The set may be empty;
// stream initialization rejects that.
func (c Config) StreamFlags() (interop.Flags, error) {
	return interop.ParseFlags(c.Flags)
}

// NewLogger creates a logrus logger writing to w with the configured level
// and format.
func NewLogger(w io.Writer, c Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return logger
}
