// Package config loads and merges carbonledger configuration: defaults,
// the config file under the user's config directory, and environment
// overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rshade/carbonledger/internal/logging"
)

// Defaults applied by New before any file or environment override.
const (
	DefaultOutputFormat = "table"
	DefaultPrecision    = 2
	DefaultRegion       = "global"
	DefaultFactorsDB    = "factors.db"
	configFileName      = "config.yaml"
)

// OutputConfig controls how command results are rendered.
type OutputConfig struct {
	// DefaultFormat is "table" or "json".
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	// Precision is the number of decimal places for CO2e values.
	Precision int `yaml:"precision" json:"precision"`
}

// FactorsConfig selects the factor library and the default resolution
// context applied when a command does not override them.
type FactorsConfig struct {
	// Database is the SQLite factor-library path. Relative paths resolve
	// against the config directory.
	Database string `yaml:"database" json:"database"`
	// Region is the default factor region.
	Region string `yaml:"region" json:"region"`
	// Year is the default factor year. Zero means the current year.
	Year int `yaml:"year,omitempty" json:"year,omitempty"`
}

// ReportConfig carries the reporting context stamped onto exports.
type ReportConfig struct {
	Organization  string `yaml:"organization,omitempty" json:"organization,omitempty"`
	ReportingYear string `yaml:"reporting_year,omitempty" json:"reporting_year,omitempty"`
	Standard      string `yaml:"standard,omitempty" json:"standard,omitempty"`
}

// DenominatorsConfig holds the intensity-KPI denominators.
type DenominatorsConfig struct {
	ProductionUnits float64 `yaml:"production_units,omitempty" json:"production_units,omitempty"`
	RevenueMUSD     float64 `yaml:"revenue_musd,omitempty" json:"revenue_musd,omitempty"`
	Employees       float64 `yaml:"employees,omitempty" json:"employees,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	Logging      logging.Config     `yaml:"logging" json:"logging"`
	Output       OutputConfig       `yaml:"output" json:"output"`
	Factors      FactorsConfig      `yaml:"factors" json:"factors"`
	Report       ReportConfig       `yaml:"report" json:"report"`
	Denominators DenominatorsConfig `yaml:"denominators" json:"denominators"`
}

// New returns the configuration assembled from defaults, the global
// config file (if present), and environment overrides. A malformed
// config file is ignored in favor of defaults; commands that need strict
// parsing use LoadFile directly.
func New() *Config {
	cfg := defaults()

	if dir, err := GetConfigDir(); err == nil {
		path := filepath.Join(dir, configFileName)
		if _, statErr := os.Stat(path); statErr == nil {
			_ = ShallowMergeYAML(cfg, path)
		}
	}

	cfg.applyEnv()
	return cfg
}

// LoadFile parses an explicit config file over defaults. Unlike New it
// fails on unreadable or malformed input.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	if err := ShallowMergeYAML(cfg, path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Logging: logging.Config{Level: "info", Format: "console"},
		Output:  OutputConfig{DefaultFormat: DefaultOutputFormat, Precision: DefaultPrecision},
		Factors: FactorsConfig{Database: DefaultFactorsDB, Region: DefaultRegion},
	}
}

// applyEnv applies CARBONLEDGER_* environment overrides. Environment
// always wins over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("CARBONLEDGER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CARBONLEDGER_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CARBONLEDGER_FACTORS_DB"); v != "" {
		c.Factors.Database = v
	}
	if v := os.Getenv("CARBONLEDGER_REGION"); v != "" {
		c.Factors.Region = v
	}
	if v := os.Getenv("CARBONLEDGER_YEAR"); v != "" {
		if year, err := strconv.Atoi(v); err == nil {
			c.Factors.Year = year
		}
	}
	if v := os.Getenv("CARBONLEDGER_OUTPUT_FORMAT"); v != "" {
		c.Output.DefaultFormat = v
	}
}

// FactorsDBPath returns the factor-library path with relative paths
// resolved against the config directory.
func (c *Config) FactorsDBPath() (string, error) {
	if filepath.IsAbs(c.Factors.Database) {
		return c.Factors.Database, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Factors.Database), nil
}

// GetConfigDir returns the carbonledger configuration directory,
// honoring CARBONLEDGER_HOME.
func GetConfigDir() (string, error) {
	if clHome := os.Getenv("CARBONLEDGER_HOME"); clHome != "" {
		return clHome, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".carbonledger"), nil
}

// EnsureConfigDir ensures the carbonledger configuration directory exists.
func EnsureConfigDir() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// EnsureLogDir ensures the parent directory of the configured log file
// exists. No-op when no log file is configured.
func (c *Config) EnsureLogDir() error {
	if c.Logging.File == "" {
		return nil
	}
	logDir := filepath.Dir(c.Logging.File)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	return nil
}

// Save writes the configuration to the global config file.
func (c *Config) Save() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, configFileName), data, 0600)
}

// GlobalConfig holds the global configuration instance.
var GlobalConfig *Config        //nolint:gochecknoglobals // Singleton pattern for configuration
var globalConfigMu sync.RWMutex //nolint:gochecknoglobals // Protects globalConfigInit flag
var globalConfigInit bool       //nolint:gochecknoglobals // Tracks if global config has been initialized

// InitGlobalConfig initializes the global configuration.
func InitGlobalConfig() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	if globalConfigInit {
		return
	}

	GlobalConfig = New()
	globalConfigInit = true
}

// ResetGlobalConfigForTest resets the global config for testing purposes.
func ResetGlobalConfigForTest() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	GlobalConfig = nil
	globalConfigInit = false
}

// GetGlobalConfig returns the global configuration, initializing it if needed.
func GetGlobalConfig() *Config {
	InitGlobalConfig()

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return GlobalConfig
}
