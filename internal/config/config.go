// ABOUTME: Configuration loading and parsing for coven-relay
// ABOUTME: Supports TOML and YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty in the file.
const (
	DefaultEndpoint     = "https://api.openai.com/v1/completions"
	DefaultEnabledModel = "davinci"
	DefaultBackendModel = "text-davinci-003"
	DefaultDedupeTTL    = 10 * time.Minute
	DefaultDedupeSize   = 1000
)

// DefaultAllowedModels is the model list offered when models.allowed is empty.
var DefaultAllowedModels = []string{"davinci", "curie", "babbage", "ada"}

// Config represents the complete coven-relay configuration
type Config struct {
	Discord    DiscordConfig    `toml:"discord" yaml:"discord"`
	Matrix     MatrixConfig     `toml:"matrix" yaml:"matrix"`
	Completion CompletionConfig `toml:"completion" yaml:"completion"`
	Models     ModelsConfig     `toml:"models" yaml:"models"`
	Dedupe     DedupeConfig     `toml:"dedupe" yaml:"dedupe"`
	Database   DatabaseConfig   `toml:"database" yaml:"database"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
}

// DiscordConfig holds the Discord bot credentials
type DiscordConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Token   string `toml:"token" yaml:"token"`
}

// MatrixConfig holds Matrix integration configuration
type MatrixConfig struct {
	Enabled      bool     `toml:"enabled" yaml:"enabled"`
	Homeserver   string   `toml:"homeserver" yaml:"homeserver"`
	UserID       string   `toml:"user_id" yaml:"user_id"`
	AccessToken  string   `toml:"access_token" yaml:"access_token"`
	AllowedRooms []string `toml:"allowed_rooms" yaml:"allowed_rooms"`
}

// CompletionConfig holds the completion backend connection settings
type CompletionConfig struct {
	Endpoint     string `toml:"endpoint" yaml:"endpoint"`
	APIKey       string `toml:"api_key" yaml:"api_key"`
	Organization string `toml:"organization" yaml:"organization"`
	BackendModel string `toml:"backend_model" yaml:"backend_model"`
}

// ModelsConfig lists the user-facing model identifiers
type ModelsConfig struct {
	Allowed []string `toml:"allowed" yaml:"allowed"`
	Enabled string   `toml:"enabled" yaml:"enabled"`
}

// DedupeConfig controls the redelivered-event filter
type DedupeConfig struct {
	TTL     time.Duration `toml:"-" yaml:"-"`
	MaxSize int           `toml:"max_size" yaml:"max_size"`

	// Raw string value for unmarshaling
	TTLRaw string `toml:"ttl" yaml:"ttl"`
}

// DatabaseConfig holds database configuration. An empty path disables the ledger.
type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// The decoder is chosen by file extension: .yaml and .yml use YAML, anything else TOML.
// Environment variables in the format ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	cfg, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Decode is Load without validation, for callers that only need part of the
// file (the usage report reads database.path and nothing else).
func Decode(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return decode(expandEnvVars(string(data)), formatFor(path))
}

// Format names a config file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Parse decodes already-expanded config text, applies defaults and validates.
func Parse(data string, format Format) (*Config, error) {
	cfg, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func decode(data string, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if _, err := toml.Decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Completion.Endpoint == "" {
		c.Completion.Endpoint = DefaultEndpoint
	}
	if c.Completion.BackendModel == "" {
		c.Completion.BackendModel = DefaultBackendModel
	}
	if len(c.Models.Allowed) == 0 {
		c.Models.Allowed = slices.Clone(DefaultAllowedModels)
	}
	if c.Models.Enabled == "" {
		c.Models.Enabled = DefaultEnabledModel
	}
	if c.Dedupe.TTLRaw == "" {
		c.Dedupe.TTL = DefaultDedupeTTL
	}
	if c.Dedupe.MaxSize == 0 {
		c.Dedupe.MaxSize = DefaultDedupeSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Discord.Enabled && !c.Matrix.Enabled {
		return fmt.Errorf("at least one of discord or matrix must be enabled")
	}

	if c.Discord.Enabled && c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required when discord is enabled")
	}

	if c.Matrix.Enabled {
		if c.Matrix.Homeserver == "" {
			return fmt.Errorf("matrix.homeserver is required when matrix is enabled")
		}
		if err := requireHTTPURL("matrix.homeserver", c.Matrix.Homeserver); err != nil {
			return err
		}
		if c.Matrix.UserID == "" {
			return fmt.Errorf("matrix.user_id is required when matrix is enabled")
		}
		if c.Matrix.AccessToken == "" {
			return fmt.Errorf("matrix.access_token is required when matrix is enabled")
		}
	}

	if c.Completion.APIKey == "" {
		return fmt.Errorf("completion.api_key is required")
	}
	if err := requireHTTPURL("completion.endpoint", c.Completion.Endpoint); err != nil {
		return err
	}

	if !slices.Contains(c.Models.Allowed, c.Models.Enabled) {
		return fmt.Errorf("models.enabled %q is not in models.allowed", c.Models.Enabled)
	}

	if c.Dedupe.TTL <= 0 {
		return fmt.Errorf("dedupe.ttl must be positive")
	}
	if c.Dedupe.MaxSize < 0 {
		return fmt.Errorf("dedupe.max_size must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func requireHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Dedupe.TTLRaw != "" {
		ttl, err := time.ParseDuration(cfg.Dedupe.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe.ttl %q: %w", cfg.Dedupe.TTLRaw, err)
		}
		cfg.Dedupe.TTL = ttl
	}
	return nil
}

// DefaultPath returns the config file location.
// Priority: COVEN_RELAY_CONFIG env var > XDG_CONFIG_HOME/coven/relay.toml > ~/.config/coven/relay.toml
func DefaultPath() string {
	if envPath := os.Getenv("COVEN_RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "relay.toml")
}
