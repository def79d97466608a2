package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"calsplit/internal/split"
)

const (
	DefaultOutputDir           = "output_calendars"
	DefaultProductID           = split.DefaultProductID
	DefaultDescriptionTemplate = split.DefaultDescriptionTemplate
	DefaultLogLevel            = "info"
	DefaultFetchTimeoutSeconds = 15
	DefaultHorizonDays         = 365
	DefaultMaxOccurrences      = 5000
	DefaultListen              = "127.0.0.1:8080"
	DefaultRefreshCron         = "*/15 * * * *"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for `calsplit serve`.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// OutputDir is where one calendar file per class is created. Relative
	// paths resolve against the working directory.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// ProductID replaces PRODID in every split calendar.
	ProductID string `yaml:"product_id" json:"product_id"`

	// DescriptionTemplate replaces X-WR-CALDESC. "{class}" is substituted
	// with the class identifier.
	DescriptionTemplate string `yaml:"description_template" json:"description_template"`

	// FileExtension is appended to each output file name (e.g. ".ics").
	// Empty keeps the bare class identifier as file name.
	FileExtension string `yaml:"file_extension" json:"file_extension"`

	// IncludeTimezones copies VTIMEZONE definitions into every class calendar.
	IncludeTimezones bool `yaml:"include_timezones" json:"include_timezones"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// FetchTimeoutSeconds bounds HTTP downloads of remote calendars.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// HorizonDays is how far past now `list` expands recurring events.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// MaxOccurrencesPerEvent caps RRULE expansion per event.
	MaxOccurrencesPerEvent int `yaml:"max_occurrences_per_event" json:"max_occurrences_per_event"`

	// Listen is the HTTP listen address used by `calsplit serve`.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron-style schedule (e.g. "*/15 * * * *") on which
	// `calsplit serve` re-reads and re-splits its source.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BasicAuth, if non-nil, protects every served endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:              DefaultOutputDir,
		ProductID:              DefaultProductID,
		DescriptionTemplate:    DefaultDescriptionTemplate,
		FileExtension:          "",
		IncludeTimezones:       false,
		LogLevel:               DefaultLogLevel,
		FetchTimeoutSeconds:    DefaultFetchTimeoutSeconds,
		HorizonDays:            DefaultHorizonDays,
		MaxOccurrencesPerEvent: DefaultMaxOccurrences,
		Listen:                 DefaultListen,
		RefreshCron:            DefaultRefreshCron,
		BasicAuth:              nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.ProductID == "" {
		c.ProductID = DefaultProductID
	}
	if c.DescriptionTemplate == "" {
		c.DescriptionTemplate = DefaultDescriptionTemplate
	}
	if c.FileExtension != "" && !strings.HasPrefix(c.FileExtension, ".") {
		c.FileExtension = "." + c.FileExtension
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = DefaultLogLevel
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = DefaultFetchTimeoutSeconds
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.MaxOccurrencesPerEvent <= 0 {
		c.MaxOccurrencesPerEvent = DefaultMaxOccurrences
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if strings.TrimSpace(c.RefreshCron) == "" {
		c.RefreshCron = DefaultRefreshCron
	}
}

// HeaderOptions maps the header settings onto split.HeaderOptions.
func (c *Config) HeaderOptions() split.HeaderOptions {
	return split.HeaderOptions{
		ProductID:           c.ProductID,
		DescriptionTemplate: c.DescriptionTemplate,
		IncludeTimezones:    c.IncludeTimezones,
	}
}

// Load loads configuration from the given YAML path.
//
// An empty path means "no config file" and yields DefaultConfig. A named
// file that does not exist is an error; use Save (`calsplit config init`)
// to create one.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calsplit-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
