// Package config handles Scribe configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (SCRIBE_*)
//  2. Config file (~/.config/scribe/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scribe-dev/scribe/internal/paths"
)

const (
	// DefaultStabilizeWindowMS is how long an unterminated line must
	// sit unchanged before it is recorded, in milliseconds.
	DefaultStabilizeWindowMS = 300
	// DefaultTransientRevisions is the rewrite count past which a line
	// is treated as animation.
	DefaultTransientRevisions = 3
	// DefaultPollIntervalMS is the capture loop wake-up interval in
	// milliseconds.
	DefaultPollIntervalMS = 100
)

// Config holds the Scribe configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault("capture.stabilize_window_ms", DefaultStabilizeWindowMS)
	v.SetDefault("capture.transient_revisions", DefaultTransientRevisions)
	v.SetDefault("capture.poll_interval_ms", DefaultPollIntervalMS)
	v.SetDefault("capture.prompt_pattern", "")
	v.SetDefault("sessions.dir", "")
	v.SetDefault("sessions.retain_raw", false)
	v.SetDefault("privacy.rules_file", "")

	home, err := os.UserHomeDir()
	if err == nil {
		configDir := filepath.Join(home, ".config", "scribe")
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Missing config file is fine; anything else is worth a warning.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns a configuration value as int.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool returns a configuration value as bool.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value interface{}) error {
	c.v.Set(key, value)

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".config", "scribe")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	configFile := filepath.Join(configDir, "config.yaml")
	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// SessionsDir returns the directory session records are written to,
// defaulting to the user state directory.
func (c *Config) SessionsDir() string {
	if dir := c.GetString("sessions.dir"); dir != "" {
		return dir
	}

	dir, err := paths.SessionsDir()
	if err != nil {
		return filepath.Join(".scribe", "sessions")
	}

	return dir
}

// RetainRaw reports whether the pre-mask raw sidecar log is kept.
func (c *Config) RetainRaw() bool {
	return c.GetBool("sessions.retain_raw")
}

// StabilizeWindow returns the line stabilization window.
func (c *Config) StabilizeWindow() time.Duration {
	return time.Duration(c.GetInt("capture.stabilize_window_ms")) * time.Millisecond
}

// TransientRevisions returns the animation rewrite cutoff.
func (c *Config) TransientRevisions() int {
	return c.GetInt("capture.transient_revisions")
}

// PollInterval returns the capture loop wake-up interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.GetInt("capture.poll_interval_ms")) * time.Millisecond
}

// PromptPattern returns the configured idle-prompt pattern, empty for
// the built-in default.
func (c *Config) PromptPattern() string {
	return c.GetString("capture.prompt_pattern")
}

// PrivacyRulesFile returns the path of the user's masking rules file,
// defaulting to privacy.yaml in the user config directory.
func (c *Config) PrivacyRulesFile() string {
	if path := c.GetString("privacy.rules_file"); path != "" {
		return path
	}

	path, err := paths.PrivacyRulesFile()
	if err != nil {
		return ""
	}

	return path
}
