// Package config provides configuration management for opsmap.
//
// Config file locations (priority order):
//  1. $OPSMAP_CONFIG
//  2. ./opsmap.yaml
//  3. $XDG_CONFIG_HOME/opsmap/config.yaml
//  4. ~/.config/opsmap/config.yaml
//  5. /etc/opsmap/config.yaml
//
// A .env file in the working directory is loaded first, and OPSMAP_*
// environment variables override file values.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values
const (
	EnvAddr         = "OPSMAP_ADDR"
	EnvNetworkURL   = "OPSMAP_NETWORK_URL"
	EnvOptimizerURL = "OPSMAP_OPTIMIZER_URL"
	EnvNetworkFile  = "OPSMAP_NETWORK_FILE"
	EnvDatabase     = "OPSMAP_DB"
	EnvAutoRecalc   = "OPSMAP_AUTO_RECOMPUTE"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	loadDotEnv(".env")

	path := FindConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:            ":3000",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Providers: ProvidersConfig{
			Timeout:       Duration(30 * time.Second),
			WatchDebounce: Duration(500 * time.Millisecond),
		},
		Database: DatabaseConfig{Path: "./opsmap.db"},
		View:     DefaultViewConfig(),
		Overlay:  DefaultOverlayConfig(),
		Settings: SettingsConfig{
			Debounce:      Duration(450 * time.Millisecond),
			AutoRecompute: false,
		},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Providers.Timeout <= 0 {
		c.Providers.Timeout = d.Providers.Timeout
	}
	if c.Providers.WatchDebounce <= 0 {
		c.Providers.WatchDebounce = d.Providers.WatchDebounce
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Settings.Debounce <= 0 {
		c.Settings.Debounce = d.Settings.Debounce
	}
	c.View.applyDefaults(d.View)
	c.Overlay.applyDefaults(d.Overlay)
}

// applyEnv overrides file values with OPSMAP_* variables
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvNetworkURL); v != "" {
		c.Providers.NetworkURL = v
	}
	if v := os.Getenv(EnvOptimizerURL); v != "" {
		c.Providers.OptimizerURL = v
	}
	if v := os.Getenv(EnvNetworkFile); v != "" {
		c.Providers.NetworkFile = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvAutoRecalc); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Settings.AutoRecompute = b
		} else {
			log.Printf("Ignoring %s=%q: %v", EnvAutoRecalc, v, err)
		}
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if c.Overlay.Warning > c.Overlay.Critical {
		return fmt.Errorf("overlay warning threshold %.1f exceeds critical %.1f", c.Overlay.Warning, c.Overlay.Critical)
	}
	if c.View.FocusZoom <= 0 {
		return fmt.Errorf("view focus_zoom must be positive")
	}
	if c.Providers.NetworkURL != "" && c.Providers.NetworkFile != "" {
		return fmt.Errorf("providers: set either network_url or network_file, not both")
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	source := "none"
	switch {
	case c.Providers.NetworkFile != "":
		source = "file " + c.Providers.NetworkFile
	case c.Providers.NetworkURL != "":
		source = c.Providers.NetworkURL
	}
	summary := fmt.Sprintf("Listen: %s, Network: %s, Optimizer: %s\n", c.Server.Addr, source, orNone(c.Providers.OptimizerURL))
	summary += fmt.Sprintf("Database: %s, Thresholds: %.0f/%.0f%%, Auto-recompute: %v",
		c.Database.Path, c.Overlay.Warning, c.Overlay.Critical, c.Settings.AutoRecompute)
	return summary
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// loadDotEnv loads a .env file if present; variables already set win
func loadDotEnv(path string) {
	if !fileExists(path) {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("Failed to load %s: %v", path, err)
	}
}
