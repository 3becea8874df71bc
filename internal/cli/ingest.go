package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventstate/internal/eventlog"
	"github.com/roach88/eventstate/internal/replay"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	LogPath string
}

// IngestOutput reports what was appended to the event log.
type IngestOutput struct {
	Events       int   `json:"events"`
	Stored       int64 `json:"stored"`
	LastPosition int64 `json:"last_position"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <events.yaml>",
		Short: "Append events from a YAML file to the event log",
		Long: `Append the events of a YAML event file to the SQLite event log.

Positions already stored are ignored, so a file can be ingested twice.
Events without a position are numbered after the previous event.

Examples:
  eventstate ingest ./events.yaml --log ./events.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.LogPath, "log", "", "path to the SQLite event log (default: log.path)")

	return cmd
}

func runIngest(ctx context.Context, opts *IngestOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	logPath := opts.LogPath
	if logPath == "" {
		logPath = opts.config().Log.Path
	}
	if logPath == "" {
		return NewExitError(ExitCommandError, "no event log: set --log or log.path")
	}

	events, err := replay.LoadYAML(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}

	l, err := eventlog.Open(logPath)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to open event log %s", logPath), err)
	}
	defer l.Close()

	if err := l.Append(ctx, events...); err != nil {
		return WrapExitError(ExitCommandError, "failed to append events", err)
	}

	result := IngestOutput{Events: len(events)}
	if result.Stored, err = l.Count(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}
	if result.LastPosition, err = l.LastPosition(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read last position", err)
	}

	if out.JSON() {
		return out.Success(result)
	}
	out.Printf("Ingested %d events into %s (%d stored, last position %d)\n",
		result.Events, logPath, result.Stored, result.LastPosition)
	return nil
}
