package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sensible/internal/config"
	"github.com/zjrosen/sensible/internal/sensible"
	"github.com/zjrosen/sensible/internal/timeparse"
)

func newFormatter(t *testing.T, now time.Time) *sensible.Formatter {
	t.Helper()
	c := config.Defaults()
	c.Timezone = "UTC"
	f, err := c.NewFormatter(sensible.FixedClock(now))
	require.NoError(t, err)
	return f
}

// execute runs the root command against a temporary config file.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		strictFlag = false
		nowFlag = ""
		cfgFile = ""
		initForce = false
		initGlobal = false
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))
	return path
}

func TestRender_Lines(t *testing.T) {
	f := newFormatter(t, time.Date(2011, 9, 26, 10, 1, 30, 0, time.UTC))

	var out bytes.Buffer
	err := render(f, []string{"2011-09-26T10:00:00Z", "garbage", "2011-09-26T10:00:45Z"}, &out, false)
	require.NoError(t, err)
	require.Equal(t, "about a minute ago\ngarbage\nless than a minute ago\n", out.String())
}

func TestRender_Strict(t *testing.T) {
	f := newFormatter(t, time.Now())

	var out bytes.Buffer
	err := render(f, []string{"garbage"}, &out, true)
	require.ErrorIs(t, err, timeparse.ErrMalformed)
	require.Empty(t, out.String())
}

func TestReadLines_SkipsBlank(t *testing.T) {
	lines, err := readLines(strings.NewReader("a\n\n  b  \n\t\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, lines)
}

func TestClockFor(t *testing.T) {
	clock, err := clockFor("", "")
	require.NoError(t, err)
	require.IsType(t, sensible.RealClock{}, clock)

	clock, err = clockFor("UTC", "2011-09-26 10:00:00")
	require.NoError(t, err)
	require.True(t, time.Date(2011, 9, 26, 10, 0, 0, 0, time.UTC).Equal(clock.Now()))

	_, err = clockFor("UTC", "whenever")
	require.ErrorIs(t, err, timeparse.ErrMalformed)

	_, err = clockFor("Nowhere/Special", "2011-09-26")
	require.Error(t, err)
}

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sensible", "config.yaml")

	require.NoError(t, initConfigFile(path, false))
	err := initConfigFile(path, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("broken"), 0o600))
	require.NoError(t, initConfigFile(path, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))
}

func TestExecute_RenderArgs(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "",
		"--config", path, "--timezone", "UTC", "--now", "2011-09-27T08:00:00Z",
		"2011-09-26T22:15:00Z", "2011-09-27T07:59:30Z")
	require.NoError(t, err)
	require.Equal(t, "10 hours ago\nless than a minute ago\n", out)
}

func TestExecute_RenderStdin(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "2011-09-26T10:00:00Z\n\n2010-01-01T00:00:00Z\n",
		"--config", path, "--timezone", "UTC", "--now", "2011-09-26T10:30:00Z")
	require.NoError(t, err)
	require.Equal(t, "30 minutes ago\nJanuary 1, 2010 at 12:00am\n", out)
}

func TestExecute_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("short_day_names: [Sun]\n"), 0o600))

	_, err := execute(t, "", "--config", path, "2011-09-26")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}

func TestExecute_MasksSet(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "", "--config", path, "masks", "set", "10", "just now")
	require.NoError(t, err)
	require.Contains(t, out, "Saved 8 masks")

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(10), loaded.Masks[0].Distance)
	require.Equal(t, "just now", loaded.Masks[0].Mask)
}

func TestExecute_MasksList(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "", "--config", path, "masks")
	require.NoError(t, err)
	require.Contains(t, out, "DISTANCE")
	require.Contains(t, out, "31556926")
	require.Contains(t, out, "less than a minute ago")
	require.Contains(t, out, "future")
}

func TestExecute_Config(t *testing.T) {
	path := writeTestConfig(t)

	out, err := execute(t, "", "--config", path, "config")
	require.NoError(t, err)
	require.Contains(t, out, "# "+path)
	require.Contains(t, out, "refresh_rate: 1m0s")
}

func TestExecute_Tokens(t *testing.T) {
	out, err := execute(t, "", "tokens")
	require.NoError(t, err)
	require.Contains(t, out, "Mask tokens")
	require.Contains(t, out, "past_mask")
}
