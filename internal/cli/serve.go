package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/eventstate/internal/eventlog"
	"github.com/roach88/eventstate/internal/metrics"
	"github.com/roach88/eventstate/internal/queryapi"
	"github.com/roach88/eventstate/internal/replay"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	LogPath   string
	StatePath string
	Poll      time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Follow the event log and serve the resulting state",
		Long: `Replay the event log, then keep applying new events as they are
appended while serving read-only state queries and Prometheus metrics
over HTTP.

If an event cannot be applied, following stops and the state as of the
last applied event stays available.

Examples:
  eventstate serve --log ./events.db --state ./state.db
  eventstate serve --addr :9090 --poll 500ms`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().StringVar(&opts.LogPath, "log", "", "path to the SQLite event log (default: log.path)")
	cmd.Flags().StringVar(&opts.StatePath, "state", "", "path to the SQLite state store (default: state.path)")
	cmd.Flags().DurationVar(&opts.Poll, "poll", time.Second, "how often to check the event log for new events")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg := opts.config()
	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	logPath := opts.LogPath
	if logPath == "" {
		logPath = cfg.Log.Path
	}
	statePath := opts.StatePath
	if statePath == "" {
		statePath = cfg.State.Path
	}
	if logPath == "" {
		return NewExitError(ExitCommandError, "no event log: set --log or log.path")
	}
	if opts.Poll <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid poll interval %s", opts.Poll))
	}

	l, err := eventlog.Open(logPath)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to open event log %s", logPath), err)
	}
	defer l.Close()

	ps, ea, err := openState(statePath, cfg.StateOptions())
	if err != nil {
		return err
	}
	defer ps.DB.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewReplay(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	driver := replay.New(ps, ea, replay.WithObserver(observer))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queryapi.New(ps, reg).ListenAndServe(ctx, addr)
	})
	g.Go(func() error {
		return follow(ctx, driver, l, opts.Poll)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "serve failed", err)
	}
	return nil
}

// follow replays the log once, then again whenever it has grown, until
// ctx is done. A replay error ends following without failing the server.
func follow(ctx context.Context, driver *replay.Driver, l *eventlog.Log, poll time.Duration) error {
	if _, err := driver.Replay(ctx, l); err != nil {
		return followStopped(ctx, err)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		last, err := l.LastPosition(ctx)
		if err != nil {
			return followStopped(ctx, err)
		}
		if last <= driver.LastPosition() {
			continue
		}
		if _, err := driver.Replay(ctx, l); err != nil {
			return followStopped(ctx, err)
		}
	}
}

func followStopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	var re *replay.ReplayError
	if errors.As(err, &re) {
		slog.Error("following stopped; serving state as of the last applied event",
			"position", re.Position,
			"code", re.Code,
			"error", err,
		)
		return nil
	}
	return err
}
