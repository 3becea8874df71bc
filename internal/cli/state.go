package cli

import (
	"fmt"

	"github.com/roach88/eventstate/internal/appliers"
	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/eventlog"
	"github.com/roach88/eventstate/internal/replay"
	"github.com/roach88/eventstate/internal/state"
)

// openState opens the state store at path and registers every applier.
// Registration errors are command errors.
func openState(path string, opts state.Options) (*state.ProcessingState, *appliers.EventAppliers, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open state", err)
	}

	ps := state.NewProcessingState(d, opts)
	ea := appliers.NewEventAppliers()
	if err := appliers.RegisterStateAppliers(ea, ps); err != nil {
		d.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to register appliers", err)
	}
	return ps, ea, nil
}

// eventSource is where replay and verify read events from: a YAML event
// file if one is given, the event log otherwise.
type eventSource struct {
	replay.Source
	close func() error
}

func openSource(eventsFile, logPath string) (*eventSource, error) {
	if eventsFile != "" {
		events, err := replay.LoadYAML(eventsFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load events", err)
		}
		return &eventSource{Source: events, close: func() error { return nil }}, nil
	}

	if logPath == "" {
		return nil, NewExitError(ExitCommandError, "no event source: set --events, --log or log.path")
	}
	l, err := eventlog.Open(logPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open event log %s", logPath), err)
	}
	return &eventSource{Source: l, close: l.Close}, nil
}
