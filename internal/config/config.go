// Package config resolves server settings. Precedence, lowest to highest:
// built-in defaults, an optional YAML file, FIELDWORK_* environment
// variables. A missing config file yields the defaults; a malformed one is
// an error.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calderbay/fieldwork/internal/queryfilter"
)

// DefaultPath is probed when no config file is named.
const DefaultPath = "fieldwork.yaml"

// Config is the resolved server configuration.
type Config struct {
	// Addr is the listen address for the HTTP API.
	Addr string `yaml:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// PageSize is the default list page size when a request names none.
	PageSize int `yaml:"page_size"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// RequestTimeout bounds request handling, written as a Go duration
	// string ("30s", "2m").
	RequestTimeout Duration `yaml:"request_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:           ":8080",
		DBPath:         "fieldwork.db",
		PageSize:       queryfilter.DefaultPageSize,
		LogLevel:       "info",
		RequestTimeout: Duration(30 * time.Second),
	}
}

// Load resolves the configuration. An empty path probes DefaultPath, which
// may be absent; a named file must exist. File decoding rejects unknown keys
// so typos fail loudly instead of silently falling back to a default.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil && (explicit || !os.IsNotExist(err)) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FIELDWORK_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("FIELDWORK_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("FIELDWORK_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FIELDWORK_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("FIELDWORK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FIELDWORK_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FIELDWORK_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = Duration(d)
	}
	return nil
}

func (c Config) validate() error {
	if c.PageSize < 1 || c.PageSize > queryfilter.MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d, got %d", queryfilter.MaxPageSize, c.PageSize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

// SlogLevel maps the configured level onto slog's.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
