package appliers

import (
	"context"
	"reflect"
	"sort"

	"github.com/roach88/eventstate/internal/protocol"
)

// Applier applies one (intent, version) of event to state. An applier must
// be deterministic: its only inputs are the key, the record value, and the
// state it reads.
type Applier interface {
	ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error
}

// EventAppliers dispatches events to the applier registered for their
// intent and record version.
//
// The table is filled once at startup and only read afterwards, so
// dispatch takes no locks.
type EventAppliers struct {
	appliers map[protocol.Intent]map[int32]Applier
}

// NewEventAppliers returns an empty registry.
func NewEventAppliers() *EventAppliers {
	return &EventAppliers{appliers: make(map[protocol.Intent]map[int32]Applier)}
}

// Register adds applier for (intent, version). Once shipped, an applier's
// effect on state must never change; a change in behavior is a new
// version.
func (e *EventAppliers) Register(intent protocol.Intent, version int32, applier Applier) error {
	fail := func(err error) error {
		return &RegistrationError{Intent: intent, Version: version, Err: err}
	}

	if version < 0 {
		return fail(ErrNegativeVersion)
	}
	if intent == protocol.IntentUnknown {
		return fail(ErrNilIntent)
	}
	if isNil(applier) {
		return fail(ErrNilApplier)
	}
	if !intent.IsEvent() {
		return fail(ErrNotAnEvent)
	}

	versions := e.appliers[intent]
	if versions == nil {
		versions = make(map[int32]Applier)
		e.appliers[intent] = versions
	}
	if _, taken := versions[version]; taken {
		return fail(ErrDuplicateApplier)
	}
	versions[version] = applier
	return nil
}

func isNil(applier Applier) bool {
	if applier == nil {
		return true
	}
	v := reflect.ValueOf(applier)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// ApplyState applies value with the applier registered for (intent,
// version). It returns the applier's error unchanged.
func (e *EventAppliers) ApplyState(ctx context.Context, key int64, intent protocol.Intent, value protocol.RecordValue, version int32) error {
	versions, ok := e.appliers[intent]
	if !ok || len(versions) == 0 {
		return &NoApplierForIntentError{Intent: intent}
	}
	applier, ok := versions[version]
	if !ok {
		return &NoApplierForVersionError{Intent: intent, Version: version, LatestVersion: e.LatestVersion(intent)}
	}
	return applier.ApplyState(ctx, key, value)
}

// LatestVersion returns the highest registered version of intent, or -1.
func (e *EventAppliers) LatestVersion(intent protocol.Intent) int32 {
	latest := int32(-1)
	for v := range e.appliers[intent] {
		if v > latest {
			latest = v
		}
	}
	return latest
}

// Registration describes one registered applier.
type Registration struct {
	Intent  protocol.Intent
	Version int32
	Applier Applier
}

// TypeName returns the applier's type name without package or pointer.
func (r Registration) TypeName() string {
	t := reflect.TypeOf(r.Applier)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Registered lists every registration ordered by intent, then version.
func (e *EventAppliers) Registered() []Registration {
	var out []Registration
	for intent, versions := range e.appliers {
		for version, applier := range versions {
			out = append(out, Registration{Intent: intent, Version: version, Applier: applier})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Intent != out[j].Intent {
			return out[i].Intent < out[j].Intent
		}
		return out[i].Version < out[j].Version
	})
	return out
}
