package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/eventstate/internal/appliers"
	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/replay"
	"github.com/roach88/eventstate/internal/state"
	"github.com/roach88/eventstate/internal/testutil"
)

// Harness is one isolated store with its appliers and driver.
type Harness struct {
	state  *state.ProcessingState
	driver *replay.Driver
}

// newHarness opens a fresh in-memory store. Replay ids are derived from
// name so logs of repeated runs are identical.
func newHarness(name string, bucket time.Duration) (*Harness, error) {
	d, err := db.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	ps := state.NewProcessingState(d, state.Options{UsageBucketDuration: bucket})
	ea := appliers.NewEventAppliers()
	if err := appliers.RegisterStateAppliers(ea, ps); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to register appliers: %w", err)
	}

	driver := replay.New(ps, ea,
		replay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		replay.WithIDGenerator(testutil.NewIDSequence(name).Next),
	)
	return &Harness{state: ps, driver: driver}, nil
}

func (h *Harness) close() error {
	return h.state.DB.Close()
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Decode the scenario events
//  2. Replay them into a fresh store
//  3. Compare the replay outcome with expect_error
//  4. Evaluate assertions against the final state
//
// An error is returned only if the scenario could not be run at all.
// Failed expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	events, err := replay.DecodeYAMLEvents(scenario.Events)
	if err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	h, err := newHarness(scenario.Name, scenario.BucketDuration())
	if err != nil {
		return nil, err
	}
	defer h.close()

	result := NewResult()
	res, replayErr := h.driver.Replay(ctx, events)
	result.Applied = res.Applied
	result.Skipped = res.Skipped
	result.LastPosition = res.LastPosition

	if replayErr != nil {
		var re *replay.ReplayError
		if !errors.As(replayErr, &re) {
			return nil, fmt.Errorf("failed to replay events: %w", replayErr)
		}
		result.ErrorCode = string(re.Code)
	}

	switch {
	case scenario.ExpectError == "" && replayErr != nil:
		result.AddError(fmt.Sprintf("replay failed: %v", replayErr))
	case scenario.ExpectError != "" && replayErr == nil:
		result.AddError(fmt.Sprintf("expected replay error %s, but all %d events applied", scenario.ExpectError, len(events)))
	case scenario.ExpectError != "" && result.ErrorCode != scenario.ExpectError:
		result.AddError(fmt.Sprintf("expected replay error %s, got: %v", scenario.ExpectError, replayErr))
	}

	result.Digest = res.Digest
	if replayErr != nil {
		// The failed event was rolled back; digest what was committed.
		result.Digest, err = h.state.DB.Digest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to digest state: %w", err)
		}
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Scenario: scenario,
		State:    h.state,
		Events:   events,
		Digest:   result.Digest,
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// replayDigest replays events into a fresh store and returns the digest
// of whatever was committed.
func replayDigest(ctx context.Context, scenario *Scenario, events replay.Events) (string, error) {
	h, err := newHarness(scenario.Name, scenario.BucketDuration())
	if err != nil {
		return "", err
	}
	defer h.close()

	if _, err := h.driver.Replay(ctx, events); err != nil {
		var re *replay.ReplayError
		if !errors.As(err, &re) {
			return "", err
		}
	}
	return h.state.DB.Digest(ctx)
}
