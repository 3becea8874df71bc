package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "eventstate", cmd.Use)
	assert.Contains(t, cmd.Long, "event log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"replay", "verify", "ingest", "appliers", "test", "serve", "snapshot"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	pollFlag := serveCmd.Flags().Lookup("poll")
	require.NotNil(t, pollFlag)
	assert.Equal(t, "1s", pollFlag.DefValue)

	addrFlag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, addrFlag)
	// Falls back to server.addr.
	assert.Equal(t, "", addrFlag.DefValue)
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := executeRoot(t, "--format", "xml", "appliers")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "appliers")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRoot_ConfigSuppliesPaths(t *testing.T) {
	dir := t.TempDir()
	events := writeFile(t, dir, "events.yaml", formEvents)
	logPath := filepath.Join(dir, "events.db")
	statePath := filepath.Join(dir, "state.db")
	cfg := writeFile(t, dir, "eventstate.yaml", "state:\n  path: "+statePath+"\nlog:\n  path: "+logPath+"\n")

	_, err := executeRoot(t, "--config", cfg, "ingest", events)
	require.NoError(t, err)

	out, err := executeRoot(t, "--config", cfg, "replay")
	require.NoError(t, err)
	assert.Contains(t, out, "2 applied, 1 skipped")
	assert.FileExists(t, statePath)
}
