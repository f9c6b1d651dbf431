package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/sensible/internal/config"
	"github.com/zjrosen/sensible/internal/log"
	"github.com/zjrosen/sensible/internal/sensible"
	"github.com/zjrosen/sensible/internal/timeparse"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

// localConfigPath is checked before the user config directory.
const localConfigPath = ".sensible/config.yaml"

// annotationSkipConfig marks commands that must run even when the config is
// invalid.
const annotationSkipConfig = "skip-config"

var (
	version    = "dev"
	cfgFile    string
	cfg        config.Config
	cfgErr     error
	debugFlag  bool
	nowFlag    string
	strictFlag bool
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "sensible [timestamp...]",
	Short: "Render timestamps as human friendly relative times",
	Long: `Render timestamps as "5 minutes ago", "Yesterday at 10:15pm" or an
absolute date, depending on how far they are from now.

Timestamps are read from the arguments, or one per line from stdin when no
arguments are given. Unparseable timestamps are printed unchanged.

Example:
  sensible 2011-09-26T22:15:00Z
  sensible --now 2011-09-27T08:00:00Z "2011-09-26 22:15:00"
  git log --format=%cI | sensible`,
	Version:            version,
	Args:               cobra.ArbitraryArgs,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               runRender,
	SilenceUsage:       true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.sensible/config.yaml, then ~/.config/sensible/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (path from SENSIBLE_LOG, default debug.log)")
	rootCmd.PersistentFlags().StringVar(&nowFlag, "now", "",
		"render relative to this timestamp instead of the current time")
	rootCmd.PersistentFlags().String("timezone", "",
		"IANA timezone for zoneless timestamps and rendering (overrides config)")
	rootCmd.Flags().BoolVar(&strictFlag, "strict", false,
		"fail on the first unparseable timestamp")

	_ = viper.BindPFlag("timezone", rootCmd.PersistentFlags().Lookup("timezone"))
}

// userConfigDir returns ~/.config/sensible, or "" without a home directory.
func userConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sensible")
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .sensible/config.yaml (current directory)
		// 2. ~/.config/sensible/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else if dir := userConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	cfgErr = nil
	if err := viper.ReadInConfig(); err != nil {
		// Defaults apply without a config file; "sensible init" writes one.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			cfgErr = fmt.Errorf("reading config: %w", err)
			return
		}
	}

	cfg = config.Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		cfgErr = fmt.Errorf("decoding config: %w", err)
	}
}

// setup starts logging and rejects invalid configuration before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	if os.Getenv("SENSIBLE_DEBUG") != "" || debugFlag {
		logPath := os.Getenv("SENSIBLE_LOG")
		if logPath == "" {
			logPath = "debug.log"
		}
		cleanup, err := log.InitWithTeaLog(logPath, "sensible")
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		logCleanup = cleanup
		log.Info(log.CatConfig, "Sensible starting", "command", cmd.Name(), "config", viper.ConfigFileUsed())
	}

	if cmd.Annotations[annotationSkipConfig] == "true" {
		return nil
	}
	if cfgErr != nil {
		return cfgErr
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return nil
}

// clockFor returns a fixed clock when --now is set.
func clockFor(loc string, now string) (sensible.Clock, error) {
	if now == "" {
		return sensible.RealClock{}, nil
	}
	c := config.Config{Timezone: loc}
	location, err := c.Location()
	if err != nil {
		return nil, err
	}
	t, err := timeparse.Parse(now, location)
	if err != nil {
		return nil, fmt.Errorf("invalid --now: %w", err)
	}
	return sensible.FixedClock(t), nil
}

func runRender(cmd *cobra.Command, args []string) error {
	clock, err := clockFor(cfg.Timezone, nowFlag)
	if err != nil {
		return err
	}
	f, err := cfg.NewFormatter(clock)
	if err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		if inputs, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	return render(f, inputs, cmd.OutOrStdout(), strictFlag)
}

// render writes one line per input. Unparseable inputs are echoed unchanged
// unless strict is set.
func render(f *sensible.Formatter, inputs []string, out io.Writer, strict bool) error {
	for _, raw := range inputs {
		text, err := f.FormatString(raw)
		if err != nil {
			if strict {
				return fmt.Errorf("%q: %w", raw, err)
			}
			log.Warn(log.CatParse, "Leaving unparseable timestamp as is", "raw", raw)
			text = raw
		}
		if _, err := fmt.Fprintln(out, text); err != nil {
			return err
		}
	}
	return nil
}

// readLines returns the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return lines, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
