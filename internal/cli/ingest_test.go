package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/eventlog"
	"github.com/roach88/eventstate/internal/protocol"
)

func TestIngest_AppendsEvents(t *testing.T) {
	dir := t.TempDir()
	events := writeFile(t, dir, "events.yaml", formEvents)
	logPath := filepath.Join(dir, "events.db")

	out, err := execute(t, NewIngestCommand(&RootOptions{Format: "json"}), events, "--log", logPath)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   IngestOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, IngestOutput{Events: 3, Stored: 3, LastPosition: 3}, resp.Data)

	l, err := eventlog.Open(logPath)
	require.NoError(t, err)
	defer l.Close()

	stored, err := l.ReadByKey(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, protocol.FormCreated, stored[0].Intent)
	assert.Equal(t, int32(2), stored[0].RecordVersion)
}

func TestIngest_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	events := writeFile(t, dir, "events.yaml", formEvents)
	more := writeFile(t, dir, "more.yaml", moreFormEvents)
	logPath := filepath.Join(dir, "events.db")

	for range 2 {
		_, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}), events, "--log", logPath)
		require.NoError(t, err)
	}
	out, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}), more, "--log", logPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 1 events")
	assert.Contains(t, out, "(4 stored, last position 4)")
}

func TestIngest_RequiresLog(t *testing.T) {
	events := writeFile(t, t.TempDir(), "events.yaml", formEvents)

	_, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}), events)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no event log")
}

func TestIngest_RequiresFileArgument(t *testing.T) {
	_, err := execute(t, NewIngestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
