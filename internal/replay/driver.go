package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/eventstate/internal/appliers"
	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

// Observer is told what the driver did with each record. The metrics
// package implements it.
type Observer interface {
	Applied(e protocol.Event, elapsed time.Duration)
	Skipped(e protocol.Event)
	Failed(e protocol.Event, code string)
}

// Source yields committed events in position order, starting after the
// given position. eventlog.Log and Events both implement it.
type Source interface {
	Each(ctx context.Context, after int64, fn func(protocol.Event) error) error
}

// Driver applies events to a ProcessingState through the registered
// appliers.
//
// A Driver is not safe for concurrent use: exactly one goroutine applies
// events.
type Driver struct {
	state    *state.ProcessingState
	appliers *appliers.EventAppliers
	observer Observer
	newID    func() string
	logger   *slog.Logger

	lastPosition int64
}

// Option configures a Driver.
type Option func(*Driver)

// WithObserver reports every applied, skipped and failed record to o.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		d.observer = o
	}
}

// WithIDGenerator replaces the UUIDv7 replay ids, for deterministic logs in
// tests.
func WithIDGenerator(fn func() string) Option {
	return func(d *Driver) {
		d.newID = fn
	}
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// New creates a Driver. The registry must be fully populated; the driver
// only reads it.
func New(ps *state.ProcessingState, ea *appliers.EventAppliers, opts ...Option) *Driver {
	d := &Driver{
		state:    ps,
		appliers: ea,
		observer: nopObserver{},
		logger:   slog.Default(),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result summarizes one Replay call.
type Result struct {
	ReplayID string `json:"replay_id"`

	// From is the last applied position before the replay started.
	From int64 `json:"from"`

	// LastPosition is the last applied position after the replay.
	LastPosition int64 `json:"last_position"`

	Applied int `json:"applied"`
	Skipped int `json:"skipped"`

	// Digest is the state digest after the last applied event.
	Digest string `json:"digest"`
}

// LastPosition returns the position of the last event this driver
// committed, or the position loaded by Resume.
func (d *Driver) LastPosition() int64 {
	return d.lastPosition
}

// Resume loads the persisted last-applied position, so events at or below
// it are skipped.
func (d *Driver) Resume(ctx context.Context) (int64, error) {
	pos, err := d.state.DB.LastPosition(ctx)
	if err != nil {
		return 0, fmt.Errorf("resume: %w", err)
	}
	d.lastPosition = pos
	return pos, nil
}

// Replay applies every event src holds after the persisted last-applied
// position, then computes the state digest. It stops at the first error,
// which is a *ReplayError unless reading the source or ctx failed.
func (d *Driver) Replay(ctx context.Context, src Source) (Result, error) {
	from, err := d.Resume(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{ReplayID: d.newID(), From: from, LastPosition: from}
	d.logger.Info("replay starting", "replay_id", res.ReplayID, "position", from)

	err = src.Each(ctx, from, func(e protocol.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		applied, err := d.apply(ctx, e)
		if err != nil {
			return err
		}
		if applied {
			res.Applied++
		} else {
			res.Skipped++
		}
		return nil
	})
	res.LastPosition = d.lastPosition
	if err != nil {
		d.logger.Error("replay stopped",
			"replay_id", res.ReplayID,
			"position", res.LastPosition,
			"applied", res.Applied,
			"error", err,
		)
		return res, err
	}

	res.Digest, err = d.state.DB.Digest(ctx)
	if err != nil {
		return res, err
	}

	d.logger.Info("replay finished",
		"replay_id", res.ReplayID,
		"position", res.LastPosition,
		"applied", res.Applied,
		"skipped", res.Skipped,
		"digest", res.Digest,
	)
	return res, nil
}

// Apply applies a single event. Events at or below the last applied
// position are ignored.
func (d *Driver) Apply(ctx context.Context, e protocol.Event) error {
	_, err := d.apply(ctx, e)
	return err
}

// apply reports whether e changed state.
func (d *Driver) apply(ctx context.Context, e protocol.Event) (bool, error) {
	if e.Position <= d.lastPosition {
		d.logger.Debug("record already applied",
			"position", e.Position,
			"last_position", d.lastPosition,
		)
		d.observer.Skipped(e)
		return false, nil
	}

	isEvent := changesState(e.Intent)
	start := time.Now()
	err := d.state.DB.Transaction(ctx, func(ctx context.Context) error {
		if isEvent {
			d.state.Clock.SetRecordTime(e.Timestamp)
			if err := d.appliers.ApplyState(ctx, e.Key, e.Intent, e.Value, e.RecordVersion); err != nil {
				return err
			}
		}
		return d.state.DB.SetLastPosition(ctx, e.Position)
	})
	if err != nil {
		rerr := newReplayError(e, err)
		d.observer.Failed(e, string(rerr.Code))
		d.logger.Error("event apply failed",
			"code", rerr.Code,
			"position", e.Position,
			"intent", e.Intent,
			"key", e.Key,
			"version", e.RecordVersion,
			"error", err,
		)
		return false, rerr
	}
	d.lastPosition = e.Position

	if !isEvent {
		d.logger.Debug("record skipped", "position", e.Position, "intent", e.Intent)
		d.observer.Skipped(e)
		return false, nil
	}

	d.logger.Debug("event applied",
		"position", e.Position,
		"intent", e.Intent,
		"key", e.Key,
		"version", e.RecordVersion,
	)
	d.observer.Applied(e, time.Since(start))
	return true, nil
}

// changesState reports whether records of intent go through an applier.
// Checkpoint events are handled by the backup subsystem, not by state.
func changesState(intent protocol.Intent) bool {
	return intent.IsEvent() && intent.ValueType() != protocol.ValueTypeCheckpoint
}

type nopObserver struct{}

func (nopObserver) Applied(protocol.Event, time.Duration) {}
func (nopObserver) Skipped(protocol.Event)                {}
func (nopObserver) Failed(protocol.Event, string)         {}
