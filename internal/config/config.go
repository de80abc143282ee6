// Package config loads core configuration from a TOML file overlaid with
// environment variables, following the precedence and search order of
// emergent-company-specmcp/internal/config/config.go: defaults < file < env.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the core.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Importer ImporterConfig `toml:"importer"`
	Client   ClientConfig   `toml:"client"`
	Log      LogConfig      `toml:"log"`
}

// StoreConfig configures the artifact store.
type StoreConfig struct {
	// Dir is the base directory containing one subdirectory per artifact ID.
	Dir string `toml:"dir"`
}

// ImporterConfig configures the importer / IR builder.
type ImporterConfig struct {
	// UseDefaultRules enables the documented fallback rule set (clearance
	// 0.2mm, min width 0.254mm, ...) when no rules are recovered from either
	// the binary or JSON source. Disabling it leaves the rule set empty in
	// that case.
	UseDefaultRules bool `toml:"use_default_rules"`
}

// ClientConfig configures the external-tool (script server) client.
type ClientConfig struct {
	RequestPath      string `toml:"request_path"`
	ResponsePath     string `toml:"response_path"`
	RoutineTimeoutS  int    `toml:"routine_timeout_s"`
	HeavyTimeoutS    int    `toml:"heavy_timeout_s"`
	MaxStaleReplies  int    `toml:"max_stale_replies"`
	MaxDeleteRetries int    `toml:"max_delete_retries"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Load builds a Config from defaults, optionally layering a TOML file and
// always layering environment variable overrides on top.
//
// Config file search order (first found wins):
//  1. configPath parameter (explicit --config flag)
//  2. ALTIUMDRC_CONFIG environment variable
//  3. ./altiumdrc.toml (current directory)
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Dir: "artifacts",
		},
		Importer: ImporterConfig{
			UseDefaultRules: true,
		},
		Client: ClientConfig{
			RequestPath:      "altium_request.json",
			ResponsePath:     "altium_response.json",
			RoutineTimeoutS:  10,
			HeavyTimeoutS:    30,
			MaxStaleReplies:  5,
			MaxDeleteRetries: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(explicit string) error {
	path := resolveConfigPath(explicit)
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("ALTIUMDRC_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("altiumdrc.toml"); err == nil {
		return "altiumdrc.toml"
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverride("ALTIUMDRC_STORE_DIR", &c.Store.Dir)
	envOverride("ALTIUMDRC_CLIENT_REQUEST_PATH", &c.Client.RequestPath)
	envOverride("ALTIUMDRC_CLIENT_RESPONSE_PATH", &c.Client.ResponsePath)
	envOverride("ALTIUMDRC_LOG_LEVEL", &c.Log.Level)
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks invariants that must hold before the config is used.
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}
	if c.Client.RoutineTimeoutS <= 0 || c.Client.HeavyTimeoutS <= 0 {
		return fmt.Errorf("client timeouts must be positive")
	}
	if c.Client.HeavyTimeoutS < c.Client.RoutineTimeoutS {
		return fmt.Errorf("client.heavy_timeout_s must be >= routine_timeout_s")
	}
	return nil
}
