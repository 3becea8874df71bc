package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/eventlog"
	"github.com/roach88/eventstate/internal/replay"
	"github.com/roach88/eventstate/internal/state"
)

func openFollowFixture(t *testing.T, eventsYAML string) (*eventlog.Log, *state.ProcessingState, *replay.Driver) {
	t.Helper()
	dir := t.TempDir()

	l, err := eventlog.Open(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	events, err := replay.LoadYAML(writeFile(t, dir, "events.yaml", eventsYAML))
	require.NoError(t, err)
	require.NoError(t, l.Append(context.Background(), events...))

	ps, ea, err := openState(filepath.Join(dir, "state.db"), state.Options{UsageBucketDuration: state.DefaultUsageBucketDuration})
	require.NoError(t, err)
	t.Cleanup(func() { ps.DB.Close() })

	driver := replay.New(ps, ea, replay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return l, ps, driver
}

func TestFollow_AppliesAppendedEvents(t *testing.T) {
	l, ps, driver := openFollowFixture(t, formEvents)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- follow(ctx, driver, l, 10*time.Millisecond) }()

	lastApplied := func() int64 {
		pos, err := ps.DB.LastPosition(context.Background())
		require.NoError(t, err)
		return pos
	}
	require.Eventually(t, func() bool { return lastApplied() == 3 }, 5*time.Second, 10*time.Millisecond)

	more, err := replay.LoadYAML(writeFile(t, t.TempDir(), "more.yaml", moreFormEvents))
	require.NoError(t, err)
	require.NoError(t, l.Append(context.Background(), more...))
	require.Eventually(t, func() bool { return lastApplied() == 4 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop after cancel")
	}

	_, ok, err := ps.Forms.FindByKey(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok, "form 2 was deleted at position 4")
}

func TestFollow_StopsOnReplayError(t *testing.T) {
	l, ps, driver := openFollowFixture(t, unknownVersionEvents)

	err := follow(context.Background(), driver, l, 10*time.Millisecond)
	require.NoError(t, err, "a replay error stops following but not the server")

	pos, err := ps.DB.LastPosition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)
}

func TestServe_RequiresLog(t *testing.T) {
	_, err := execute(t, NewServeCommand(&RootOptions{Format: "text"}), "--state", filepath.Join(t.TempDir(), "state.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no event log")
}

func TestServe_RejectsInvalidPoll(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, NewServeCommand(&RootOptions{Format: "text"}),
		"--log", filepath.Join(dir, "events.db"), "--state", filepath.Join(dir, "state.db"), "--poll", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid poll interval")
}
