package testutil

import (
	"github.com/roach88/eventstate/internal/protocol"
)

// EventBuilder accumulates events with consecutive positions. Each event
// is stamped Step milliseconds after the previous one.
type EventBuilder struct {
	// Start is the timestamp of the first event.
	Start int64
	// Step is the distance between consecutive timestamps.
	Step int64

	events []protocol.Event
}

// NewEventBuilder returns a builder whose first event is at position 1
// with timestamp start.
func NewEventBuilder(start, step int64) *EventBuilder {
	return &EventBuilder{Start: start, Step: step}
}

// Add appends an event at the next position.
func (b *EventBuilder) Add(key int64, intent protocol.Intent, version int32, value protocol.RecordValue) *EventBuilder {
	n := int64(len(b.events))
	b.events = append(b.events, protocol.Event{
		Position:      n + 1,
		Key:           key,
		Intent:        intent,
		RecordVersion: version,
		Timestamp:     b.Start + n*b.Step,
		Value:         value,
	})
	return b
}

// LastPosition is the position of the last added event, or 0.
func (b *EventBuilder) LastPosition() int64 {
	return int64(len(b.events))
}

// Events returns a copy of the events added so far.
func (b *EventBuilder) Events() []protocol.Event {
	out := make([]protocol.Event, len(b.events))
	copy(out, b.events)
	return out
}
