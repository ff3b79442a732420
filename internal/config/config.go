// Package config loads the autorunctl configuration file.
//
// The file is chosen by the --config flag or, failing that, the
// AUTORUNKIT_CONFIG environment variable. Without either, Default is used
// unchanged. Values present in the file override the defaults field by
// field; ${VAR} and ${VAR:-default} are expanded in path fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/internal/logger"
	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/store"
)

// EnvVar names the environment variable consulted when no --config flag is given.
const EnvVar = "AUTORUNKIT_CONFIG"

// Config is the full autorunctl configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Retention   RetentionConfig   `yaml:"retention"`
	Log         LogConfig         `yaml:"log"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	ConfigStore ConfigStoreConfig `yaml:"configstore"`
}

// StoreConfig configures the transaction store.
type StoreConfig struct {
	// BaseDir holds one directory per transaction.
	BaseDir string `yaml:"base_dir"`

	// Flush is the durability mode for manifest and payload writes.
	// Values: auto, none, full
	Flush string `yaml:"flush"`

	// IntegrityPolicy decides what a bad sidecar does on load.
	// Values: fail-open (warn and continue), strict (refuse)
	IntegrityPolicy string `yaml:"integrity_policy"`
}

// RetentionConfig bounds how many transactions purge keeps. Zero is unlimited.
type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	MaxCount int           `yaml:"max_count"`
}

// LogConfig configures file logging. An empty Dir disables it.
type LogConfig struct {
	Dir           string `yaml:"dir"`
	Level         string `yaml:"level"`
	RetentionDays int    `yaml:"retention_days"`
}

// MetricsConfig configures the Prometheus textfile written on exit.
type MetricsConfig struct {
	// Textfile is the node_exporter textfile collector path. Empty disables it.
	Textfile string `yaml:"textfile"`
}

// ConfigStoreConfig selects the backend holding the auto-start entries.
type ConfigStoreConfig struct {
	// Backend is auto, registry, file or memory.
	Backend string `yaml:"backend"`
	// File is the JSON document used by the file backend.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	root := defaultRoot()
	return &Config{
		Store: StoreConfig{
			BaseDir:         filepath.Join(root, "transactions"),
			Flush:           "auto",
			IntegrityPolicy: "fail-open",
		},
		Retention: RetentionConfig{
			MaxAge:   30 * 24 * time.Hour,
			MaxCount: 500,
		},
		Log: LogConfig{
			Level:         "info",
			RetentionDays: logger.DefaultRetentionDays,
		},
		ConfigStore: ConfigStoreConfig{
			Backend: configstore.BackendAuto,
			File:    filepath.Join(root, "configstore.json"),
		},
	}
}

func defaultRoot() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "autorunkit")
}

// Load resolves the config path from flagPath or EnvVar and loads it. When
// neither is set the defaults are returned.
func Load(flagPath string) (*Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path on top of Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Store.BaseDir = expandVars(c.Store.BaseDir)
	c.Log.Dir = expandVars(c.Log.Dir)
	c.Metrics.Textfile = expandVars(c.Metrics.Textfile)
	c.ConfigStore.File = expandVars(c.ConfigStore.File)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.BaseDir == "" {
		errs = append(errs, errors.New("store.base_dir is required"))
	}
	if _, err := fsync.ParseFlushMode(c.Store.Flush); err != nil {
		errs = append(errs, fmt.Errorf("store.flush: %w", err))
	}
	if _, err := store.ParseIntegrityPolicy(c.Store.IntegrityPolicy); err != nil {
		errs = append(errs, fmt.Errorf("store.integrity_policy: %w", err))
	}
	if c.Retention.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("retention.max_age must not be negative, got %s", c.Retention.MaxAge))
	}
	if c.Retention.MaxCount < 0 {
		errs = append(errs, fmt.Errorf("retention.max_count must not be negative, got %d", c.Retention.MaxCount))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.ConfigStore.Backend {
	case configstore.BackendAuto, configstore.BackendRegistry, configstore.BackendMemory:
	case configstore.BackendFile:
		if c.ConfigStore.File == "" {
			errs = append(errs, errors.New("configstore.file is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("configstore.backend: unknown backend %q", c.ConfigStore.Backend))
	}

	return errors.Join(errs...)
}

// FlushMode returns the parsed store.flush value.
func (c *Config) FlushMode() fsync.FlushMode {
	m, _ := fsync.ParseFlushMode(c.Store.Flush)
	return m
}

// IntegrityPolicy returns the parsed store.integrity_policy value.
func (c *Config) IntegrityPolicy() store.IntegrityPolicy {
	p, _ := store.ParseIntegrityPolicy(c.Store.IntegrityPolicy)
	return p
}

// PurgeOptions returns the retention settings in store form.
func (c *Config) PurgeOptions() store.PurgeOptions {
	return store.PurgeOptions{MaxAge: c.Retention.MaxAge, MaxCount: c.Retention.MaxCount}
}
