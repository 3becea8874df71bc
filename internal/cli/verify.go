package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventstate/internal/replay"
	"github.com/roach88/eventstate/internal/state"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	EventsFile string
	LogPath    string
}

// VerifyOutput is the result of a determinism check.
type VerifyOutput struct {
	Events        int    `json:"events"`
	LastPosition  int64  `json:"last_position"`
	FirstDigest   string `json:"first_digest"`
	SecondDigest  string `json:"second_digest"`
	Deterministic bool   `json:"deterministic"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that replaying the events twice yields the same state",
		Long: `Replay the events into two fresh in-memory state stores and compare
their digests.

Exit codes:
  0 - Both replays produced the same state
  1 - The digests differ
  2 - Command error, or replay stopped at an event it could not apply

Examples:
  eventstate verify --log ./events.db
  eventstate verify --events ./events.yaml --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EventsFile, "events", "", "YAML event file to verify instead of the event log")
	cmd.Flags().StringVar(&opts.LogPath, "log", "", "path to the SQLite event log (default: log.path)")

	return cmd
}

func runVerify(ctx context.Context, opts *VerifyOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.config()
	out := opts.formatter(cmd)

	logPath := opts.LogPath
	if logPath == "" {
		logPath = cfg.Log.Path
	}
	src, err := openSource(opts.EventsFile, logPath)
	if err != nil {
		return err
	}
	defer src.close()

	first, err := replayInMemory(ctx, cfg.StateOptions(), src)
	if err != nil {
		return verifyFailed(out, err)
	}
	second, err := replayInMemory(ctx, cfg.StateOptions(), src)
	if err != nil {
		return verifyFailed(out, err)
	}

	result := VerifyOutput{
		Events:        first.Applied + first.Skipped,
		LastPosition:  first.LastPosition,
		FirstDigest:   first.Digest,
		SecondDigest:  second.Digest,
		Deterministic: first.Digest == second.Digest,
	}

	if !result.Deterministic {
		msg := fmt.Sprintf("replay is not deterministic: %s != %s", first.Digest, second.Digest)
		if err := out.Failure(result, CodeDeterminism, msg); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	if out.JSON() {
		return out.Success(result)
	}
	out.Printf("Verified %d events up to position %d\n", result.Events, result.LastPosition)
	out.Printf("Digest: %s\n", result.FirstDigest)
	return nil
}

// replayInMemory replays src into a fresh in-memory state store.
func replayInMemory(ctx context.Context, opts state.Options, src replay.Source) (replay.Result, error) {
	ps, ea, err := openState(":memory:", opts)
	if err != nil {
		return replay.Result{}, err
	}
	defer ps.DB.Close()
	return replay.New(ps, ea).Replay(ctx, src)
}

func verifyFailed(out *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if ferr := out.Error(errorCode(err), err.Error(), nil); ferr != nil {
		return ferr
	}
	return WrapExitError(ExitCommandError, "replay failed", err)
}
