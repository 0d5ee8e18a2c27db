package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Config is the full on-disk configuration.
type Config struct {
	General GeneralConfig `json:"general"`
	Google  GoogleConfig  `json:"google"`
	Bing    BingConfig    `json:"bing"`
	Tools   ToolsConfig   `json:"tools"`
	Metrics MetricsConfig `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"log_level"` // debug, info, warn, error
	LogFile  string `json:"log_file"`  // empty logs to stderr
}

type GoogleConfig struct {
	BaseURL          string `json:"base_url"`
	Origin           string `json:"origin"`
	Browser          string `json:"browser"` // empty tries chrome, chromium, brave, edge
	Profile          string `json:"profile"`
	CookiePath       string `json:"cookie_path"` // explicit store path, wins over browser
	CookieTTLSeconds int    `json:"cookie_ttl_seconds"`
	TokenTTLSeconds  int    `json:"token_ttl_seconds"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	CodeTablePath    string `json:"code_table_path"` // optional YAML override for wire codes
}

type BingConfig struct {
	Enabled        bool   `json:"enabled"`
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type ToolsConfig struct {
	DefaultRowLimit int `json:"default_row_limit"`
	MaxRowLimit     int `json:"max_row_limit"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// envPattern matches ${VAR} and ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars substitutes ${VAR} and ${VAR:-default} references in raw
// config bytes before parsing, so secrets like the Bing API key can stay out
// of the file.
func ExpandEnvVars(raw []byte) []byte {
	return envPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		groups := envPattern.FindSubmatch(m)
		if v, ok := os.LookupEnv(string(groups[1])); ok {
			return []byte(v)
		}
		return groups[2]
	})
}

// Load reads, expands and validates a config file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(ExpandEnvVars(raw), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config as indented JSON, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("general.log_level %q is not one of debug, info, warn, error", c.General.LogLevel)
	}
	if c.Google.BaseURL == "" {
		return fmt.Errorf("google.base_url must not be empty")
	}
	if c.Google.Origin == "" {
		return fmt.Errorf("google.origin must not be empty")
	}
	switch c.Google.Browser {
	case "", "chrome", "chromium", "brave", "edge":
	default:
		return fmt.Errorf("google.browser %q is not one of chrome, chromium, brave, edge", c.Google.Browser)
	}
	if c.Google.CookieTTLSeconds < 0 || c.Google.TokenTTLSeconds < 0 || c.Google.TimeoutSeconds < 0 {
		return fmt.Errorf("google TTLs and timeout must not be negative")
	}
	if c.Bing.Enabled && c.Bing.APIKey == "" {
		return fmt.Errorf("bing.api_key is required when bing.enabled is true")
	}
	if c.Tools.DefaultRowLimit < 0 || c.Tools.MaxRowLimit < 0 {
		return fmt.Errorf("tools row limits must not be negative")
	}
	if c.Tools.MaxRowLimit > 0 && c.Tools.DefaultRowLimit > c.Tools.MaxRowLimit {
		return fmt.Errorf("tools.default_row_limit exceeds tools.max_row_limit")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}
	return nil
}

// DefaultPath returns the per-user config location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "searchlens.json"
	}
	return filepath.Join(dir, "searchlens", "config.json")
}
