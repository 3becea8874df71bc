package protocol

import "slices"

// ClockRecord pins the engine clock to Time (epoch millis) or resets it.
type ClockRecord struct {
	Time int64 `json:"time"`
}

func (*ClockRecord) ValueType() ValueType { return ValueTypeClock }

// UsageMetricRecord is written when the active usage bucket has been
// exported. ResetTime is where the next bucket starts.
type UsageMetricRecord struct {
	ResetTime int64 `json:"reset_time"`
	StartTime int64 `json:"start_time,omitempty"`
	EndTime   int64 `json:"end_time,omitempty"`
}

func (*UsageMetricRecord) ValueType() ValueType { return ValueTypeUsageMetric }

// GlobalListener is one listener definition applied to every user task.
type GlobalListener struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	EventTypes     []string `json:"event_types,omitempty"`
	Retries        int32    `json:"retries"`
	AfterNonGlobal bool     `json:"after_non_global,omitempty"`
	Priority       int32    `json:"priority,omitempty"`
}

// GlobalListenerBatchRecord replaces the whole global listener
// configuration at once.
type GlobalListenerBatchRecord struct {
	GlobalListenerBatchKey int64            `json:"global_listener_batch_key"`
	Listeners              []GlobalListener `json:"listeners,omitempty"`
}

func (*GlobalListenerBatchRecord) ValueType() ValueType { return ValueTypeGlobalListenerBatch }

// Clone returns a deep copy of the batch.
func (r *GlobalListenerBatchRecord) Clone() *GlobalListenerBatchRecord {
	out := &GlobalListenerBatchRecord{GlobalListenerBatchKey: r.GlobalListenerBatchKey}
	if r.Listeners != nil {
		out.Listeners = make([]GlobalListener, len(r.Listeners))
		for i, l := range r.Listeners {
			l.EventTypes = slices.Clone(l.EventTypes)
			out.Listeners[i] = l
		}
	}
	return out
}

// CheckpointRecord marks a backup checkpoint. Checkpoints are handled by
// the backup subsystem and never reach the state appliers.
type CheckpointRecord struct {
	CheckpointID       int64 `json:"checkpoint_id"`
	CheckpointPosition int64 `json:"checkpoint_position"`
}

func (*CheckpointRecord) ValueType() ValueType { return ValueTypeCheckpoint }
