// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jward/rootpath/internal/lang"
)

// EnvPrefix prefixes environment overrides, e.g. ROOTPATH_CACHE_SIZE.
const EnvPrefix = "ROOTPATH"

// Config represents the complete configuration.
type Config struct {
	Cache     CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Index     IndexConfig         `mapstructure:"index" yaml:"index"`
	Ignore    map[string][]string `mapstructure:"ignore" yaml:"ignore,omitempty"` // language → regexps
	Logging   LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Watch     WatchConfig         `mapstructure:"watch" yaml:"watch"`
	Telemetry TelemetryConfig     `mapstructure:"telemetry" yaml:"telemetry"`
}

// CacheConfig sizes the snippet cache.
type CacheConfig struct {
	Size int `mapstructure:"size" yaml:"size"` // cached scope levels
}

// IndexConfig contains indexing configuration.
type IndexConfig struct {
	DBPath     string   `mapstructure:"db_path" yaml:"db_path"`         // empty: .rootpath/index.db
	Languages  []string `mapstructure:"languages" yaml:"languages"`     // empty: all
	ScriptsDir string   `mapstructure:"scripts_dir" yaml:"scripts_dir"` // empty: embedded scripts
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// MarshalYAML writes the debounce as a duration string ("300ms").
func (w WatchConfig) MarshalYAML() (any, error) {
	return map[string]string{"debounce": w.Debounce.String()}, nil
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	Traces      string `mapstructure:"traces" yaml:"traces"`             // none, stdout
	Metrics     string `mapstructure:"metrics" yaml:"metrics"`           // none, stdout, prometheus
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"` // serve only, with prometheus
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{Size: 100},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{Debounce: 300 * time.Millisecond},
		Telemetry: TelemetryConfig{
			Traces:  "none",
			Metrics: "none",
		},
	}
}

// ConfigDir returns the path to the .rootpath directory.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".rootpath")
}

// ConfigPath returns the path to config.yaml.
func ConfigPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "config.yaml")
}

// IndexDBPath returns the database path: index.db_path when set (relative
// paths are taken from projectRoot), .rootpath/index.db otherwise.
func (c *Config) IndexDBPath(projectRoot string) string {
	switch {
	case c.Index.DBPath == "":
		return filepath.Join(ConfigDir(projectRoot), "index.db")
	case filepath.IsAbs(c.Index.DBPath):
		return c.Index.DBPath
	default:
		return filepath.Join(projectRoot, c.Index.DBPath)
	}
}

// Load reads .rootpath/config.yaml under projectRoot over the defaults and
// applies ROOTPATH_* environment overrides. A missing file is not an error;
// it is reported in the returned warnings.
func Load(projectRoot string) (*Config, []string, error) {
	cfg := DefaultConfig()
	var warnings []string

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Env overrides only apply to keys viper knows about.
	v.SetDefault("cache.size", cfg.Cache.Size)
	v.SetDefault("index.db_path", cfg.Index.DBPath)
	v.SetDefault("index.languages", cfg.Index.Languages)
	v.SetDefault("index.scripts_dir", cfg.Index.ScriptsDir)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("telemetry.traces", cfg.Telemetry.Traces)
	v.SetDefault("telemetry.metrics", cfg.Telemetry.Metrics)
	v.SetDefault("telemetry.metrics_addr", cfg.Telemetry.MetricsAddr)

	configPath := ConfigPath(projectRoot)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		warnings = append(warnings, "No config file found, using defaults")
	} else {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = 100
		warnings = append(warnings, "cache.size unset, using 100")
	}
	return cfg, warnings, nil
}

// Save writes cfg to .rootpath/config.yaml under projectRoot.
func Save(projectRoot string, cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(projectRoot), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(projectRoot), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("invalid cache size: %d (must be positive)", cfg.Cache.Size))
	}

	known := lang.All()
	for _, l := range cfg.Index.Languages {
		if !slices.Contains(known, l) {
			errs = append(errs, fmt.Errorf("unknown language: %s", l))
		}
	}

	for l, exprs := range cfg.Ignore {
		for _, expr := range exprs {
			if _, err := regexp.Compile(expr); err != nil {
				errs = append(errs, fmt.Errorf("invalid ignore pattern for %s: %w", l, err))
			}
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("invalid logging format: %s (valid: text, json)", cfg.Logging.Format))
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("invalid watch debounce: %s", cfg.Watch.Debounce))
	}

	if cfg.Telemetry.Traces != "none" && cfg.Telemetry.Traces != "stdout" {
		errs = append(errs, fmt.Errorf("invalid telemetry traces exporter: %s (valid: none, stdout)", cfg.Telemetry.Traces))
	}
	validMetrics := map[string]bool{"none": true, "stdout": true, "prometheus": true}
	if !validMetrics[cfg.Telemetry.Metrics] {
		errs = append(errs, fmt.Errorf("invalid telemetry metrics exporter: %s (valid: none, stdout, prometheus)", cfg.Telemetry.Metrics))
	}

	return errs
}

// IgnorePatterns returns the per-language ignore expressions: the built-in
// defaults, with any language listed under ignore replacing its defaults.
func (c *Config) IgnorePatterns() map[string][]string {
	out := lang.DefaultIgnorePatterns()
	for l, exprs := range c.Ignore {
		out[l] = slices.Clone(exprs)
	}
	return out
}

// SlogLevel maps the configured level name to a slog.Level. Unknown names
// map to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
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
