package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/db"
)

func setupTestState(t *testing.T) (*ProcessingState, context.Context) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewProcessingState(d, Options{}), context.Background()
}
