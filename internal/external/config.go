package external

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default service endpoints, used when neither the config file nor the
// environment overrides them.
const (
	DefaultHealthchecksEndpoint = "https://hc-ping.com"
	DefaultCronitorEndpoint     = "https://cronitor.link"
)

// File mirrors external_monitors.yml: a global migration-mode flag,
// account-level target settings, and per-check target ids. A target is
// only built for a check when both halves are present.
type File struct {
	MigrationMode bool                    `yaml:"migration_mode"`
	Targets       GlobalTargets           `yaml:"targets"`
	Checks        map[string]CheckTargets `yaml:"checks"`
}

// GlobalTargets holds account-level settings shared by all checks.
type GlobalTargets struct {
	Healthchecks *GlobalHealthchecks `yaml:"healthchecks"`
	Cronitor     *GlobalCronitor     `yaml:"cronitor"`
	Webhook      *GlobalWebhook      `yaml:"webhook"`
}

// GlobalHealthchecks carries the endpoint only; the uuid is per check.
type GlobalHealthchecks struct {
	Endpoint string `yaml:"endpoint"`
}

// GlobalCronitor carries the api key and endpoint; the monitor key is
// per check.
type GlobalCronitor struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// GlobalWebhook receives every check's events at one URL.
type GlobalWebhook struct {
	URL string `yaml:"url"`
}

// CheckTargets holds the per-check target ids.
type CheckTargets struct {
	Targets CheckTargetIDs `yaml:"targets"`
}

// CheckTargetIDs names the per-check half of each service pairing.
type CheckTargetIDs struct {
	Healthchecks *CheckHealthchecks `yaml:"healthchecks"`
	Cronitor     *CheckCronitor     `yaml:"cronitor"`
}

// CheckHealthchecks is the per-check healthchecks config.
type CheckHealthchecks struct {
	UUID string `yaml:"uuid"`
}

// CheckCronitor is the per-check cronitor config.
type CheckCronitor struct {
	MonitorKey string `yaml:"monitor_key"`
}

// Config is the loaded and resolved external monitor configuration.
type Config struct {
	// MigrationMode allows an external success to rescue the exit code
	// when the primary ping fails. PAKYAS_MIGRATION_MODE overrides the
	// file setting.
	MigrationMode bool

	file File
}

// ConfigPath returns the external monitors config file location,
// honoring XDG_CONFIG_HOME.
func ConfigPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determining home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "pakyas", "external_monitors.yml"), nil
}

// LoadConfig loads the config from the default path. A missing file is
// not an error: it yields an empty config with no targets.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFromPath(path)
}

// LoadConfigFromPath loads and parses the config at path.
func LoadConfigFromPath(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.MigrationMode = envMigrationMode(false)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading external monitors config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg.file); err != nil {
		return nil, fmt.Errorf("parsing external monitors config: %w", err)
	}

	cfg.MigrationMode = envMigrationMode(cfg.file.MigrationMode)
	return cfg, nil
}

func envMigrationMode(fileValue bool) bool {
	v := os.Getenv("PAKYAS_MIGRATION_MODE")
	if v == "" {
		return fileValue
	}
	v = strings.ToLower(v)
	return v == "1" || v == "true"
}

// TargetsForCheck resolves the targets for one check slug. Global
// settings supply endpoints and keys, the per-check block supplies ids;
// a service missing either half is skipped. Environment variables fill
// in global settings absent from the file: HEALTHCHECKS_ENDPOINT,
// CRONITOR_API_KEY, EXTERNAL_WEBHOOK_URL.
func (c *Config) TargetsForCheck(slug string) []Target {
	var targets []Target

	check, ok := c.file.Checks[slug]
	if ok && check.Targets.Healthchecks != nil {
		endpoint := ""
		if c.file.Targets.Healthchecks != nil {
			endpoint = c.file.Targets.Healthchecks.Endpoint
		}
		if endpoint == "" {
			endpoint = os.Getenv("HEALTHCHECKS_ENDPOINT")
		}
		if endpoint == "" {
			endpoint = DefaultHealthchecksEndpoint
		}
		targets = append(targets, Target{
			Kind:     KindHealthchecks,
			Endpoint: strings.TrimRight(endpoint, "/"),
			UUID:     check.Targets.Healthchecks.UUID,
		})
	}

	if ok && check.Targets.Cronitor != nil {
		apiKey := ""
		endpoint := ""
		if c.file.Targets.Cronitor != nil {
			apiKey = c.file.Targets.Cronitor.APIKey
			endpoint = c.file.Targets.Cronitor.Endpoint
		}
		if apiKey == "" {
			apiKey = os.Getenv("CRONITOR_API_KEY")
		}
		if endpoint == "" {
			endpoint = DefaultCronitorEndpoint
		}
		// No api key anywhere means the pairing is incomplete.
		if apiKey != "" {
			targets = append(targets, Target{
				Kind:       KindCronitor,
				Endpoint:   strings.TrimRight(endpoint, "/"),
				APIKey:     apiKey,
				MonitorKey: check.Targets.Cronitor.MonitorKey,
			})
		}
	}

	// The webhook is global only; the check slug travels in the payload.
	switch {
	case c.file.Targets.Webhook != nil:
		targets = append(targets, Target{Kind: KindWebhook, URL: c.file.Targets.Webhook.URL})
	case os.Getenv("EXTERNAL_WEBHOOK_URL") != "":
		targets = append(targets, Target{Kind: KindWebhook, URL: os.Getenv("EXTERNAL_WEBHOOK_URL")})
	}

	return targets
}

// HasAnyMonitors reports whether any external monitor is configured at
// all, distinguishing "nothing configured" from "nothing matches this
// check".
func (c *Config) HasAnyMonitors() bool {
	return c.file.Targets.Webhook != nil ||
		os.Getenv("EXTERNAL_WEBHOOK_URL") != "" ||
		len(c.file.Checks) > 0
}
