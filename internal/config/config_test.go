package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sensible/internal/distance"
	"github.com/zjrosen/sensible/internal/locale"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))
	require.Equal(t, time.Minute, cfg.RefreshRate)
	require.Equal(t, distance.DefaultRules(), cfg.Masks)
	require.Len(t, cfg.LongMonthNames, 12)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "short day table",
			mutate: func(c *Config) { c.ShortDayNames = []string{"Sun", "Mon"} },
			want:   "invalid locale configuration",
		},
		{
			name:   "unsorted masks",
			mutate: func(c *Config) { c.Masks = distance.Rules{{Distance: 60, Mask: "a"}, {Distance: 30, Mask: "b"}} },
			want:   "invalid masks configuration",
		},
		{
			name:   "missing past mask",
			mutate: func(c *Config) { c.PastMask = "" },
			want:   "past_mask is required",
		},
		{
			name:   "missing future mask",
			mutate: func(c *Config) { c.FutureMask = "" },
			want:   "future_mask is required",
		},
		{
			name:   "refresh rate too small",
			mutate: func(c *Config) { c.RefreshRate = 10 * time.Millisecond },
			want:   "refresh_rate must be at least 1s",
		},
		{
			name:   "unknown timezone",
			mutate: func(c *Config) { c.Timezone = "Mars/Olympus_Mons" },
			want:   "invalid timezone",
		},
		{
			name:   "sample rate",
			mutate: func(c *Config) { c.Tracing.SampleRate = 1.5 },
			want:   "tracing.sample_rate",
		},
		{
			name:   "exporter",
			mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" },
			want:   "tracing.exporter",
		},
		{
			name: "otlp endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
				c.Tracing.OTLPEndpoint = ""
			},
			want: "tracing.otlp_endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_EmptyTableIsWrapped(t *testing.T) {
	cfg := Defaults()
	cfg.LongMonthNames = make([]string, 12)
	require.ErrorIs(t, Validate(cfg), locale.ErrEmptyTable)
}

func TestLoad_DefaultTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Defaults().Masks, cfg.Masks)
	require.Equal(t, Defaults().LongDayNames, cfg.LongDayNames)
	require.Equal(t, time.Minute, cfg.RefreshRate)
	require.Equal(t, "file", cfg.Tracing.Exporter)
}

func TestLoad_PartialFileInheritsDefaults(t *testing.T) {
	path := writeConfig(t, `refresh_rate: 5s
timezone: UTC
past_mask: "%dd/%mm/%yyyy"
masks:
  - distance: 10
    mask: "just now"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.RefreshRate)
	require.Equal(t, "%dd/%mm/%yyyy", cfg.PastMask)
	require.Equal(t, Defaults().FutureMask, cfg.FutureMask)
	require.Equal(t, distance.Rules{{Distance: 10, Mask: "just now"}}, cfg.Masks)
	require.Equal(t, Defaults().ShortMonthNames, cfg.ShortMonthNames)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoad_CustomLocale(t *testing.T) {
	path := writeConfig(t, `long_day_names: [Sonntag, Montag, Dienstag, Mittwoch, Donnerstag, Freitag, Samstag]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	tables, err := cfg.Locale()
	require.NoError(t, err)
	require.Equal(t, "Montag", tables.LongDay(time.Monday))
	require.Equal(t, "Mon", tables.ShortDay(time.Monday))
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `short_month_names: [Jan, Feb]
`)
	_, err := Load(path)
	require.ErrorIs(t, err, locale.ErrEmptyTable)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}

func TestFormatterOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Timezone = "UTC"

	f, err := cfg.NewFormatter(nil)
	require.NoError(t, err)

	at := time.Date(2011, 9, 26, 10, 0, 0, 0, time.UTC)
	require.Equal(t, "about a minute ago", f.FormatAt(at, at.Add(90*time.Second)))
	require.Equal(t, time.UTC, f.Options().Location)
}

func TestDefaultTracesFilePath(t *testing.T) {
	path := DefaultTracesFilePath()
	if path != "" {
		require.Equal(t, "traces.jsonl", filepath.Base(path))
	}
}
