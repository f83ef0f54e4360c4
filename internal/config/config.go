// Package config loads and saves the orderset TOML configuration.
// Values come from, in increasing priority: defaults, the config file,
// ORDERSET_* environment variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/storage"
)

const (
	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = "orderset.toml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ORDERSET_"
)

// Config represents the orderset configuration
type Config struct {
	Listen            string   `toml:"listen"`
	Backend           string   `toml:"backend"`
	DataDir           string   `toml:"data_dir"`
	AdminKey          string   `toml:"admin_key,omitempty"`
	LogLevel          string   `toml:"log_level"`
	LogFormat         string   `toml:"log_format"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	MaxRequestBody    int64    `toml:"max_request_body"`
	WebhookURLs       []string `toml:"webhook_urls,omitempty"`
	WebhookSecret     string   `toml:"webhook_secret,omitempty"`
	Collections       []string `toml:"collections,omitempty"` // empty serves every builtin kind
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Listen:            "127.0.0.1:8730",
		Backend:           storage.KindSQLite,
		DataDir:           "./data",
		LogLevel:          "info",
		LogFormat:         "json",
		RequestsPerMinute: 600,
		MaxRequestBody:    1 << 20,
	}
}

// Load reads the config file at path over the defaults. An empty path tries
// DefaultFile and silently falls back to defaults when it does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	// The file may hold the admin key.
	return os.WriteFile(path, data, 0600)
}

// ApplyEnv overrides fields from ORDERSET_* variables found by lookup,
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("LISTEN", &c.Listen)
	str("BACKEND", &c.Backend)
	str("DATA_DIR", &c.DataDir)
	str("ADMIN_KEY", &c.AdminKey)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("WEBHOOK_SECRET", &c.WebhookSecret)
	list("WEBHOOK_URLS", &c.WebhookURLs)
	list("COLLECTIONS", &c.Collections)

	if v, ok := lookup(EnvPrefix + "REQUESTS_PER_MINUTE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err)
		}
		c.RequestsPerMinute = n
	}
	if v, ok := lookup(EnvPrefix + "MAX_REQUEST_BODY"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_REQUEST_BODY: %w", EnvPrefix, err)
		}
		c.MaxRequestBody = n
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case storage.KindSQLite, storage.KindBbolt, storage.KindMemory:
	default:
		errs = append(errs, fmt.Errorf("backend %q: want sqlite, bbolt or memory", c.Backend))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want json or text", c.LogFormat))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen must not be empty"))
	}
	if c.Backend != storage.KindMemory && c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.MaxRequestBody <= 0 {
		errs = append(errs, fmt.Errorf("max_request_body must be positive, got %d", c.MaxRequestBody))
	}
	builtin := content.BuiltinKinds()
	for _, name := range c.Collections {
		if !contains(builtin, name) {
			errs = append(errs, fmt.Errorf("collections: unknown kind %q", name))
		}
	}
	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
