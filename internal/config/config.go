// Package config provides configuration types, defaults, loading and
// validation for sensible.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/sensible/internal/distance"
	"github.com/zjrosen/sensible/internal/locale"
	"github.com/zjrosen/sensible/internal/log"
	"github.com/zjrosen/sensible/internal/sensible"
)

// Config holds all configuration options for sensible.
type Config struct {
	ShortDayNames   []string       `mapstructure:"short_day_names" yaml:"short_day_names"`
	LongDayNames    []string       `mapstructure:"long_day_names" yaml:"long_day_names"`
	ShortMonthNames []string       `mapstructure:"short_month_names" yaml:"short_month_names"`
	LongMonthNames  []string       `mapstructure:"long_month_names" yaml:"long_month_names"`
	RefreshRate     time.Duration  `mapstructure:"refresh_rate" yaml:"refresh_rate"`
	PastMask        string         `mapstructure:"past_mask" yaml:"past_mask"`
	FutureMask      string         `mapstructure:"future_mask" yaml:"future_mask"`
	Timezone        string         `mapstructure:"timezone" yaml:"timezone"` // IANA name, empty = local
	Masks           distance.Rules `mapstructure:"masks" yaml:"masks"`
	Tracing         TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
}

// TracingConfig holds tracing configuration for the refresh loop.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter" yaml:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/sensible/traces/traces.jsonl
	FilePath string `mapstructure:"file_path" yaml:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// DefaultRefreshRate matches the one-minute granularity of the default bands.
const DefaultRefreshRate = time.Minute

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/sensible/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sensible", "traces", "traces.jsonl")
}

// Defaults returns a Config with the English tables and default bands.
func Defaults() Config {
	tables := locale.Default()
	return Config{
		ShortDayNames:   tables.ShortDayNames,
		LongDayNames:    tables.LongDayNames,
		ShortMonthNames: tables.ShortMonthNames,
		LongMonthNames:  tables.LongMonthNames,
		RefreshRate:     DefaultRefreshRate,
		PastMask:        sensible.DefaultMask,
		FutureMask:      sensible.DefaultMask,
		Timezone:        "",
		Masks:           distance.DefaultRules(),
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from home dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// SetDefaults registers every default on v so that partial config files
// inherit the rest.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("short_day_names", d.ShortDayNames)
	v.SetDefault("long_day_names", d.LongDayNames)
	v.SetDefault("short_month_names", d.ShortMonthNames)
	v.SetDefault("long_month_names", d.LongMonthNames)
	v.SetDefault("refresh_rate", d.RefreshRate)
	v.SetDefault("past_mask", d.PastMask)
	v.SetDefault("future_mask", d.FutureMask)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("masks", d.Masks)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// Load reads the config file at path on a fresh viper instance. Used for
// hot reload, where the global viper state must not change underneath the
// running commands.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	log.Info(log.CatConfig, "Loaded config", "path", path, "masks", len(cfg.Masks))
	return cfg, nil
}

// Validate checks the configuration for errors. Locale tables with missing
// entries and misordered mask tables are rejected here so rendering never
// has to handle them.
func Validate(cfg Config) error {
	if _, err := cfg.Locale(); err != nil {
		return fmt.Errorf("invalid locale configuration: %w", err)
	}
	if err := cfg.Masks.Validate(); err != nil {
		return fmt.Errorf("invalid masks configuration: %w", err)
	}
	if cfg.PastMask == "" {
		return fmt.Errorf("past_mask is required")
	}
	if cfg.FutureMask == "" {
		return fmt.Errorf("future_mask is required")
	}
	if cfg.RefreshRate < time.Second {
		return fmt.Errorf("refresh_rate must be at least 1s, got %s", cfg.RefreshRate)
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}

	return nil
}

// Locale builds the name tables.
func (c Config) Locale() (locale.Tables, error) {
	return locale.FromNames(c.ShortDayNames, c.LongDayNames, c.ShortMonthNames, c.LongMonthNames)
}

// Location resolves Timezone. Empty means time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FormatterOptions converts the configuration into formatter options.
func (c Config) FormatterOptions() (sensible.Options, error) {
	tables, err := c.Locale()
	if err != nil {
		return sensible.Options{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return sensible.Options{}, err
	}
	return sensible.Options{
		Locale:     tables,
		Rules:      c.Masks,
		PastMask:   c.PastMask,
		FutureMask: c.FutureMask,
		Location:   loc,
	}, nil
}

// NewFormatter validates the configuration and builds a formatter.
func (c Config) NewFormatter(clock sensible.Clock) (*sensible.Formatter, error) {
	opts, err := c.FormatterOptions()
	if err != nil {
		return nil, err
	}
	return sensible.New(opts, clock)
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Sensible Configuration

# How often "sensible watch" re-renders timestamps
refresh_rate: 60s

# IANA timezone used for zoneless timestamps and for rendering
# (default: local time)
# timezone: Europe/Berlin

# Name tables (Sunday-first and January-first)
short_day_names: [Sun, Mon, Tue, Wed, Thu, Fri, Sat]
long_day_names: [Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday]
short_month_names: [Jan, Feb, Mar, Apr, May, Jun, Jul, Aug, Sep, Oct, Nov, Dec]
long_month_names: [January, February, March, April, May, June, July, August, September, October, November, December]

# Used for future timestamps and for timestamps older than every band below
past_mask: "%mmmm %d, %yyyy at %h:%MM%tt"
future_mask: "%mmmm %d, %yyyy at %h:%MM%tt"

# Distance bands, ascending. The first band whose distance (seconds) exceeds
# the elapsed time wins.
masks:
  - distance: 60
    mask: "less than a minute ago"
  - distance: 120
    mask: "about a minute ago"
  - distance: 3600
    mask: "%xm minutes ago"
  - distance: 7200
    mask: "about an hour ago"
  - distance: 86400
    mask: "%xh hours ago"
  - distance: 172800
    mask: "Yesterday at %h:%MM%tt"
  - distance: 31556926
    mask: "%mmmm %d at %h:%MM%tt"

# Mask tokens (prefix with %):
#   d dd ddd dddd     day of month, padded, short name, long name
#   m mm mmm mmmm     month, padded, short name, long name
#   yy yyyy           year
#   h hh H HH         12-hour, padded, 24-hour, padded
#   M MM s ss         minutes, seconds (plain or padded)
#   t tt T TT         a/p, am/pm, A/P, AM/PM
#   S                 ordinal suffix (st, nd, rd, th)
#   xs xm xh          elapsed seconds, minutes, hours (rounded)
#   xd xy             elapsed days, years (floored, 365-day years)

# Tracing of the refresh loop
tracing:
  enabled: false
  exporter: file          # none, file, stdout, otlp
  # file_path: ~/.config/sensible/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
