// Package metrics holds the Prometheus collectors for event replay. It sits
// apart from replay and queryapi so both can use it without an import cycle.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/eventstate/internal/protocol"
)

// Replay counts what the replay driver does with each event.
type Replay struct {
	applied      *prometheus.CounterVec
	skipped      prometheus.Counter
	failures     *prometheus.CounterVec
	applyLatency *prometheus.HistogramVec
	lastPosition prometheus.Gauge
}

// NewReplay creates the replay collectors and registers them on reg, or on
// the default registerer when reg is nil. Collectors that are already
// registered are reused, so calling it twice against one registry is safe.
func NewReplay(reg prometheus.Registerer) (*Replay, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Replay{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventstate_events_applied_total",
			Help: "Events applied to state, by value type and intent",
		}, []string{"value_type", "intent"}),

		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventstate_events_skipped_total",
			Help: "Records skipped because they were already applied or are not events",
		}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventstate_replay_failures_total",
			Help: "Fatal replay errors by code",
		}, []string{"code"}),

		applyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventstate_apply_duration_seconds",
			Help:    "Time to apply one event including its transaction commit",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"value_type"}),

		lastPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eventstate_last_applied_position",
			Help: "Position of the last event committed to state",
		}),
	}

	var err error
	if m.applied, err = register(reg, m.applied); err != nil {
		return nil, err
	}
	if m.skipped, err = register(reg, m.skipped); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.applyLatency, err = register(reg, m.applyLatency); err != nil {
		return nil, err
	}
	if m.lastPosition, err = register(reg, m.lastPosition); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg. If an identical collector is already registered
// the existing one is returned instead.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Applied records a committed event.
func (m *Replay) Applied(e protocol.Event, elapsed time.Duration) {
	vt := string(e.Intent.ValueType())
	m.applied.WithLabelValues(vt, e.Intent.Name()).Inc()
	m.applyLatency.WithLabelValues(vt).Observe(elapsed.Seconds())
	m.lastPosition.Set(float64(e.Position))
}

// Skipped records a record that did not change state.
func (m *Replay) Skipped(protocol.Event) {
	m.skipped.Inc()
}

// Failed records a fatal replay error.
func (m *Replay) Failed(_ protocol.Event, code string) {
	m.failures.WithLabelValues(code).Inc()
}
