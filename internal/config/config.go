// Package config provides configuration file and environment support for atr.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file
// values, e.g. ATR_LOG_LEVEL or ATR_DEFAULTS_MAX_HOPS.
const EnvPrefix = "ATR"

// Config represents the atr configuration file structure.
type Config struct {
	// LogLevel is a logrus level name
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// Defaults are applied when flags are not specified
	Defaults Defaults `yaml:"defaults" mapstructure:"defaults"`

	// Aliases for common targets. Names are case-insensitive.
	Aliases map[string]string `yaml:"aliases,omitempty" mapstructure:"aliases"`
}

// Defaults holds default values for trace parameters.
type Defaults struct {
	// Output mode
	TUI     bool `yaml:"tui" mapstructure:"tui"`
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	JSON    bool `yaml:"json" mapstructure:"json"`
	CSV     bool `yaml:"csv" mapstructure:"csv"`
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`

	// Probe protocol: icmp, tcp
	Protocol string `yaml:"protocol" mapstructure:"protocol"`

	// Trace parameters
	MaxHops  int           `yaml:"max_hops" mapstructure:"max_hops"`
	FirstHop int           `yaml:"first_hop" mapstructure:"first_hop"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Port     int           `yaml:"port" mapstructure:"port"`

	// Sweep behaviour
	Concurrent      bool `yaml:"concurrent" mapstructure:"concurrent"`
	DropTimeouts    bool `yaml:"drop_timeouts" mapstructure:"drop_timeouts"`
	SkipSetupErrors bool `yaml:"skip_setup_errors" mapstructure:"skip_setup_errors"`
	SetupRetries    int  `yaml:"setup_retries" mapstructure:"setup_retries"`

	// Telemetry
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
	OTelStdout  bool   `yaml:"otel_stdout" mapstructure:"otel_stdout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Defaults: Defaults{
			Protocol: "icmp",
			MaxHops:  64,
			FirstHop: 1,
			Timeout:  0, // 0 means use default for protocol
			Port:     80,
		},
		Aliases: make(map[string]string),
	}
}

// Load reads configuration from the first config file found. It searches
// in order:
//  1. ./atr.yaml, ./atr.yml, ./.atr.yaml, ./.atr.yml
//  2. $XDG_CONFIG_HOME/atr/config.yaml or ~/.config/atr/config.yaml
//  3. %APPDATA%\atr\config.yaml (Windows)
//
// The returned path is empty when no file was found; environment
// overrides still apply.
func Load() (*Config, string, error) {
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFrom(path)
			return cfg, path, err
		}
	}

	cfg, err := load("")
	return cfg, "", err
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Aliases == nil {
		cfg.Aliases = make(map[string]string)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, c *Config) {
	d := c.Defaults
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("defaults.tui", d.TUI)
	v.SetDefault("defaults.verbose", d.Verbose)
	v.SetDefault("defaults.json", d.JSON)
	v.SetDefault("defaults.csv", d.CSV)
	v.SetDefault("defaults.no_color", d.NoColor)
	v.SetDefault("defaults.protocol", d.Protocol)
	v.SetDefault("defaults.max_hops", d.MaxHops)
	v.SetDefault("defaults.first_hop", d.FirstHop)
	v.SetDefault("defaults.timeout", d.Timeout)
	v.SetDefault("defaults.port", d.Port)
	v.SetDefault("defaults.concurrent", d.Concurrent)
	v.SetDefault("defaults.drop_timeouts", d.DropTimeouts)
	v.SetDefault("defaults.skip_setup_errors", d.SkipSetupErrors)
	v.SetDefault("defaults.setup_retries", d.SetupRetries)
	v.SetDefault("defaults.metrics_file", d.MetricsFile)
	v.SetDefault("defaults.otel_stdout", d.OTelStdout)
}

// ResolveAlias returns the target an alias names, or target unchanged.
func (c *Config) ResolveAlias(target string) string {
	if t, ok := c.Aliases[strings.ToLower(target)]; ok {
		return t
	}
	return target
}

// Save writes the configuration to the default user config path.
func (c *Config) Save() error {
	return c.SaveTo(getUserConfigPath())
}

// SaveTo writes the configuration to a specific file path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// YAML returns the configuration as YAML.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func getConfigPaths() []string {
	paths := []string{
		"atr.yaml",
		"atr.yml",
		".atr.yaml",
		".atr.yml",
	}

	if userPath := getUserConfigPath(); userPath != "" {
		paths = append(paths, userPath)
	}

	return paths
}

func getUserConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "atr", "config.yaml")
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "atr", "config.yaml")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "atr", "config.yaml")
		}
	}
	return ""
}

// GetConfigPath returns the path where user config would be saved.
func GetConfigPath() string {
	return getUserConfigPath()
}

// GenerateExample generates an example configuration file content.
func GenerateExample() string {
	return `# atr configuration file
# Location: ~/.config/atr/config.yaml (Linux/macOS)
#           %APPDATA%\atr\config.yaml (Windows)
#           ./atr.yaml (current directory)
#
# Any key can be overridden from the environment with the ATR_ prefix,
# e.g. ATR_LOG_LEVEL=debug or ATR_DEFAULTS_MAX_HOPS=30.

log_level: info           # panic, fatal, error, warn, info, debug, trace

defaults:
  # Output mode (only one should be true)
  tui: false              # Interactive TUI mode
  verbose: false          # Detailed table output
  json: false             # JSON output
  csv: false              # CSV output
  no_color: false         # Disable colors

  # Probe protocol: icmp, tcp
  protocol: icmp

  # Trace parameters
  max_hops: 64            # TTL ceiling
  first_hop: 1            # Starting TTL
  timeout: 0s             # Per-probe timeout (0 = 300ms icmp, 1s tcp)
  port: 80                # Destination port when the target names none

  # Sweep behaviour
  concurrent: false       # Probe every TTL at once
  drop_timeouts: false    # Concurrent mode: omit timed out hops
  skip_setup_errors: false  # Report socket setup failures as failed hops
  setup_retries: 0        # Extra attempts when socket setup fails

  # Telemetry
  metrics_file: ""        # Write Prometheus metrics to this file
  otel_stdout: false      # Print OpenTelemetry spans to stderr

# Target aliases (optional)
aliases:
  dns: 8.8.8.8
  cf: 1.1.1.1
  google: google.com:443
`
}
