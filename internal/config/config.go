// Package config loads the CLI's own settings: backend URLs,
// credentials, and the active project. Values come from defaults, an
// optional config file, and PAKYAS_* environment overrides, in
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNoProject is returned when a command needs an active project and
// none is configured.
var ErrNoProject = errors.New("no active project: set project_id in the config file or PAKYAS_PROJECT_ID")

const (
	defaultAPIURL            = "https://api.pakyas.com"
	defaultPingURL           = "https://ping.pakyas.com"
	defaultExternalTimeoutMs = 5000
)

// Config is the CLI runtime configuration.
type Config struct {
	APIURL            string `mapstructure:"api_url"`
	PingURL           string `mapstructure:"ping_url"`
	ProjectID         string `mapstructure:"project_id"`
	APIKey            string `mapstructure:"api_key"`
	ExternalTimeoutMs uint64 `mapstructure:"external_timeout_ms"`
}

// Load reads the config from the default directory
// ($XDG_CONFIG_HOME/pakyas or ~/.config/pakyas).
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFromDir(dir)
}

// LoadFromDir reads config.yml from dir. A missing file is fine:
// defaults and environment overrides still apply.
func LoadFromDir(dir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api_url", defaultAPIURL)
	v.SetDefault("ping_url", defaultPingURL)
	v.SetDefault("project_id", "")
	v.SetDefault("api_key", "")
	v.SetDefault("external_timeout_ms", defaultExternalTimeoutMs)

	v.SetEnvPrefix("PAKYAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for explicitly bound keys.
	for _, key := range []string{"api_url", "ping_url", "project_id", "api_key", "external_timeout_ms"} {
		v.BindEnv(key)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Dir returns the CLI config directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pakyas"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pakyas"), nil
}

// ExternalTimeout returns the per-call timeout for external monitor
// requests.
func (c *Config) ExternalTimeout() time.Duration {
	return time.Duration(c.ExternalTimeoutMs) * time.Millisecond
}

// RequireProject returns the active project id or ErrNoProject.
func (c *Config) RequireProject() (string, error) {
	if c.ProjectID == "" {
		return "", ErrNoProject
	}
	return c.ProjectID, nil
}
