package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/sensible/internal/config"
	"github.com/zjrosen/sensible/internal/log"
	"github.com/zjrosen/sensible/internal/pubsub"
	"github.com/zjrosen/sensible/internal/refresh"
	"github.com/zjrosen/sensible/internal/sensible"
	"github.com/zjrosen/sensible/internal/tracing"
	"github.com/zjrosen/sensible/internal/ui/live"
	"github.com/zjrosen/sensible/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [timestamp...]",
	Short: "Keep timestamps rendered as time passes",
	Long: `Render timestamps and re-render them every refresh_rate.

By default an interactive view is shown. With --plain every change is printed
as a line instead, which suits pipes and logs. The config file is watched and
reloaded on change.

Example:
  sensible watch 2011-09-26T22:15:00Z
  sensible watch --plain < timestamps.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: runWatch,
}

var (
	plainFlag    bool
	noReloadFlag bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&plainFlag, "plain", false, "print changes as lines instead of the interactive view")
	watchCmd.Flags().BoolVar(&noReloadFlag, "no-reload", false, "do not reload when the config file changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock, err := clockFor(cfg.Timezone, nowFlag)
	if err != nil {
		return err
	}
	f, err := cfg.NewFormatter(clock)
	if err != nil {
		return err
	}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	r := refresh.New(f, cfg.RefreshRate, refresh.WithTracer(provider.Tracer()))
	defer r.Close()

	inputs := args
	stdinUsed := len(args) == 0
	if stdinUsed {
		if inputs, err = readLines(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	for _, raw := range inputs {
		r.Add(raw)
	}

	if plainFlag {
		return watchPlain(ctx, r, clock, cmd.OutOrStdout())
	}
	return watchInteractive(ctx, r, clock, stdinUsed)
}

// watchPlain prints the initial texts, then one line per change.
func watchPlain(ctx context.Context, r *refresh.Refresher, clock sensible.Clock, out io.Writer) error {
	for _, u := range r.Snapshot() {
		_, _ = fmt.Fprintln(out, u.Text)
	}

	events := r.Subscribe(ctx)
	stopReload := startReload(ctx, r, clock, func(path string, err error) {
		if err != nil {
			_, _ = fmt.Fprintf(out, "reload failed: %v\n", err)
		}
	})
	defer stopReload()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return <-errCh
			}
			if event.Type == pubsub.UpdatedEvent {
				_, _ = fmt.Fprintf(out, "%s => %s\n", event.Payload.Raw, event.Payload.Text)
			}
		case err := <-errCh:
			return err
		}
	}
}

func watchInteractive(ctx context.Context, r *refresh.Refresher, clock sensible.Clock, stdinUsed bool) error {
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if stdinUsed {
		// Timestamps came from stdin; read keys from the terminal instead.
		opts = append(opts, tea.WithInputTTY())
	}

	p := tea.NewProgram(live.New(ctx, r), opts...)

	stopReload := startReload(ctx, r, clock, func(path string, err error) {
		p.Send(live.ReloadedMsg{Path: path, Err: err})
	})
	defer stopReload()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// startReload watches the config file in use and swaps the refresher's
// formatter whenever it changes. notify is called after every attempt.
func startReload(ctx context.Context, r *refresh.Refresher, clock sensible.Clock, notify func(path string, err error)) func() {
	path := viper.ConfigFileUsed()
	if noReloadFlag || path == "" {
		return func() {}
	}

	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		log.ErrorErr(log.CatWatcher, "Failed to create config watcher", err)
		return func() {}
	}
	changes, err := w.Start()
	if err != nil {
		log.ErrorErr(log.CatWatcher, "Failed to watch config", err, "path", path)
		_ = w.Stop()
		return func() {}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				notify(path, reload(ctx, r, clock, path))
			}
		}
	}()

	return func() { _ = w.Stop() }
}

// reload applies the config at path to r. An invalid file leaves the
// current formatter in place.
func reload(ctx context.Context, r *refresh.Refresher, clock sensible.Clock, path string) error {
	next, err := config.Load(path)
	if err != nil {
		log.ErrorErr(log.CatConfig, "Config reload rejected", err, "path", path)
		return err
	}
	f, err := next.NewFormatter(clock)
	if err != nil {
		return err
	}
	r.SetFormatter(ctx, f)
	r.Refresh(ctx)
	return nil
}
