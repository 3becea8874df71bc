package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventstate/internal/replay"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	EventsFile string
	LogPath    string
	StatePath  string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply the event log to the state store",
		Long: `Apply every event after the state's last applied position, then print
the state digest.

Events are read from the event log (--log, or log.path in the config) or
from a YAML event file (--events). Replay is resumable: running it again
only applies events appended since.

Exit codes:
  0 - All events applied
  2 - Command error, or replay stopped at an event it could not apply

Examples:
  eventstate replay --log ./events.db --state ./state.db
  eventstate replay --events ./events.yaml --state ./state.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EventsFile, "events", "", "YAML event file to replay instead of the event log")
	cmd.Flags().StringVar(&opts.LogPath, "log", "", "path to the SQLite event log (default: log.path)")
	cmd.Flags().StringVar(&opts.StatePath, "state", "", "path to the SQLite state store (default: state.path)")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.config()
	out := opts.formatter(cmd)

	statePath := opts.StatePath
	if statePath == "" {
		statePath = cfg.State.Path
	}
	logPath := opts.LogPath
	if logPath == "" {
		logPath = cfg.Log.Path
	}

	src, err := openSource(opts.EventsFile, logPath)
	if err != nil {
		return err
	}
	defer src.close()

	ps, ea, err := openState(statePath, cfg.StateOptions())
	if err != nil {
		return err
	}
	defer ps.DB.Close()

	result, err := replay.New(ps, ea).Replay(ctx, src)
	if err != nil {
		var re *replay.ReplayError
		if !errors.As(err, &re) {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
		if ferr := out.Failure(result, errorCode(err), re.Error()); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("replay stopped at position %d", re.Position), err)
	}

	if out.JSON() {
		return out.Success(result)
	}
	out.Printf("Replayed positions %d..%d: %d applied, %d skipped\n",
		result.From+1, result.LastPosition, result.Applied, result.Skipped)
	out.Printf("Digest: %s\n", result.Digest)
	return nil
}
