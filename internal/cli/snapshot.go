package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
	"github.com/spf13/cobra"

	"github.com/roach88/eventstate/internal/replay"
	"github.com/roach88/eventstate/internal/state"
)

// snapshotRetain is how many snapshots the store keeps by default.
const snapshotRetain = 3

// SnapshotOptions holds flags shared by the snapshot subcommands.
type SnapshotOptions struct {
	*RootOptions
	StatePath string
	Dir       string
	Retain    int
	ID        string
}

// SnapshotOutput describes a saved or restored snapshot.
type SnapshotOutput struct {
	ID           string `json:"id"`
	LastPosition int64  `json:"last_position"`
	Size         int64  `json:"size"`
	Digest       string `json:"digest"`
}

// NewSnapshotCommand creates the snapshot command and its subcommands.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore state snapshots",
		Long: `Save the state store to a raft snapshot store, or restore it from one.

Snapshots are taken through the same raft.FSM a replicated deployment
uses, so a restored store resumes from the snapshot's last applied
position.

Examples:
  eventstate snapshot save --state ./state.db --dir ./snapshots
  eventstate snapshot restore --state ./state.db --dir ./snapshots`,
	}

	cmd.PersistentFlags().StringVar(&opts.StatePath, "state", "", "path to the SQLite state store (default: state.path)")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "snapshot store directory")

	save := &cobra.Command{
		Use:           "save",
		Short:         "Snapshot the state store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(cmd.Context(), opts, cmd)
		},
	}
	save.Flags().IntVar(&opts.Retain, "retain", snapshotRetain, "number of snapshots to keep")

	restore := &cobra.Command{
		Use:           "restore",
		Short:         "Replace the state store with a snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotRestore(cmd.Context(), opts, cmd)
		},
	}
	restore.Flags().StringVar(&opts.ID, "id", "", "snapshot to restore (default: the newest)")

	cmd.AddCommand(save, restore)
	return cmd
}

// snapshotStore opens the state behind an FSM and the snapshot store in
// opts.Dir.
func snapshotStore(ctx context.Context, opts *SnapshotOptions, logOut io.Writer) (*replay.FSM, *state.ProcessingState, *raft.FileSnapshotStore, error) {
	if opts.Dir == "" {
		return nil, nil, nil, NewExitError(ExitCommandError, "no snapshot directory: set --dir")
	}
	retain := opts.Retain
	if retain <= 0 {
		retain = snapshotRetain
	}
	store, err := raft.NewFileSnapshotStore(opts.Dir, retain, logOut)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open snapshot store", err)
	}

	cfg := opts.config()
	statePath := opts.StatePath
	if statePath == "" {
		statePath = cfg.State.Path
	}
	ps, ea, err := openState(statePath, cfg.StateOptions())
	if err != nil {
		return nil, nil, nil, err
	}
	driver := replay.New(ps, ea)
	if _, err := driver.Resume(ctx); err != nil {
		ps.DB.Close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to read state", err)
	}
	return replay.NewFSM(driver), ps, store, nil
}

func runSnapshotSave(ctx context.Context, opts *SnapshotOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	fsm, ps, store, err := snapshotStore(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer ps.DB.Close()

	pos, err := ps.DB.LastPosition(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read state", err)
	}
	snap, err := fsm.Snapshot()
	if err != nil {
		return WrapExitError(ExitCommandError, "snapshot failed", err)
	}
	defer snap.Release()

	sink, err := store.Create(raft.SnapshotVersionMax, uint64(pos), 1, raft.Configuration{}, 0, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create snapshot", err)
	}
	if err := snap.Persist(sink); err != nil {
		return WrapExitError(ExitCommandError, "snapshot failed", err)
	}

	metas, err := store.List()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	for _, meta := range metas {
		if meta.ID == sink.ID() {
			return printSnapshot(ctx, out, ps, meta, "Saved")
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("snapshot %s was not stored", sink.ID()))
}

func runSnapshotRestore(ctx context.Context, opts *SnapshotOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	fsm, ps, store, err := snapshotStore(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer ps.DB.Close()

	id := opts.ID
	if id == "" {
		metas, err := store.List()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list snapshots", err)
		}
		if len(metas) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("no snapshots in %s", opts.Dir))
		}
		id = metas[0].ID
	}

	meta, rc, err := store.Open(id)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to open snapshot %s", id), err)
	}
	if err := fsm.Restore(rc); err != nil {
		return WrapExitError(ExitCommandError, "restore failed", err)
	}
	return printSnapshot(ctx, out, ps, meta, "Restored")
}

func printSnapshot(ctx context.Context, out *OutputFormatter, ps *state.ProcessingState, meta *raft.SnapshotMeta, verb string) error {
	digest, err := ps.DB.Digest(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest state", err)
	}
	result := SnapshotOutput{ID: meta.ID, LastPosition: int64(meta.Index), Size: meta.Size, Digest: digest}

	if out.JSON() {
		return out.Success(result)
	}
	out.Printf("%s snapshot %s at position %d (%d bytes)\n", verb, result.ID, result.LastPosition, result.Size)
	out.Printf("Digest: %s\n", result.Digest)
	return nil
}
