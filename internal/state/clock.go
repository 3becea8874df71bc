package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
)

// ClockState reads the pinned clock, if any.
type ClockState interface {
	// PinnedTime returns the pinned time in epoch millis, if the clock is
	// pinned.
	PinnedTime(ctx context.Context) (int64, bool, error)
}

// MutableClockState pins and resets the clock.
type MutableClockState interface {
	ClockState
	Pin(ctx context.Context, epochMillis int64) error
	Reset(ctx context.Context) error
}

// DBClockState stores the pinned clock under a single key.
type DBClockState struct {
	pinned *db.ColumnFamily[int64]
}

// NewClockState returns the clock partition of d.
func NewClockState(d *db.DB) *DBClockState {
	return &DBClockState{pinned: db.NewColumnFamily[int64](d, cfClock, "CLOCK")}
}

func (s *DBClockState) PinnedTime(ctx context.Context) (int64, bool, error) {
	return s.pinned.Get(ctx, singleton)
}

func (s *DBClockState) Pin(ctx context.Context, epochMillis int64) error {
	return s.pinned.Upsert(ctx, singleton, epochMillis)
}

func (s *DBClockState) Reset(ctx context.Context) error {
	return s.pinned.DeleteIfExists(ctx, singleton)
}

// StreamClock is the only time source appliers may use. The replay driver
// sets the record time before each event; a pinned clock overrides it.
type StreamClock struct {
	clock      ClockState
	recordTime int64
}

// NewStreamClock returns a clock that reads its pin from clock.
func NewStreamClock(clock ClockState) *StreamClock {
	return &StreamClock{clock: clock}
}

// SetRecordTime sets the timestamp of the event being applied.
func (c *StreamClock) SetRecordTime(epochMillis int64) {
	c.recordTime = epochMillis
}

// Now returns the current stream time in epoch millis.
func (c *StreamClock) Now(ctx context.Context) (int64, error) {
	pinned, ok, err := c.clock.PinnedTime(ctx)
	if err != nil {
		return 0, err
	}
	if ok {
		return pinned, nil
	}
	return c.recordTime, nil
}
