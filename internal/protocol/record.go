package protocol

import (
	"encoding/json"
	"fmt"
)

// DefaultTenantID is the tenant used when multi-tenancy is disabled.
const DefaultTenantID = "<default>"

// RecordValue is the typed payload of a record. Every concrete record value
// is a pointer to one of the structs in this package.
type RecordValue interface {
	ValueType() ValueType
}

// NewRecordValue returns an empty, pointer-typed value for the given kind.
func NewRecordValue(vt ValueType) (RecordValue, error) {
	switch vt {
	case ValueTypeForm:
		return &FormRecord{}, nil
	case ValueTypeMappingRule:
		return &MappingRuleRecord{}, nil
	case ValueTypeRole:
		return &RoleRecord{}, nil
	case ValueTypeGroup:
		return &GroupRecord{}, nil
	case ValueTypeTenant:
		return &TenantRecord{}, nil
	case ValueTypeAuthorization:
		return &AuthorizationRecord{}, nil
	case ValueTypeProcessInstance:
		return &ProcessInstanceRecord{}, nil
	case ValueTypeProcessInstanceCreation:
		return &ProcessInstanceCreationRecord{}, nil
	case ValueTypeUserTask:
		return &UserTaskRecord{}, nil
	case ValueTypeIncident:
		return &IncidentRecord{}, nil
	case ValueTypeJob:
		return &JobRecord{}, nil
	case ValueTypeVariable:
		return &VariableRecord{}, nil
	case ValueTypeVariableDocument:
		return &VariableDocumentRecord{}, nil
	case ValueTypeClock:
		return &ClockRecord{}, nil
	case ValueTypeUsageMetric:
		return &UsageMetricRecord{}, nil
	case ValueTypeGlobalListenerBatch:
		return &GlobalListenerBatchRecord{}, nil
	case ValueTypeDecisionEvaluation:
		return &DecisionEvaluationRecord{}, nil
	case ValueTypeCheckpoint:
		return &CheckpointRecord{}, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", vt)
	}
}

// Event is one committed log entry as the replay driver sees it.
type Event struct {
	// Position is the entry's index in the committed log. Strictly increasing.
	Position int64 `json:"position"`

	// Key is the entity key the event is about (user task key, form key, ...).
	Key int64 `json:"key"`

	Intent Intent `json:"intent"`

	// RecordVersion selects which applier version transforms the event.
	RecordVersion int32 `json:"record_version"`

	// Timestamp is the record's logical time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`

	Value RecordValue `json:"-"`
}

type eventJSON struct {
	Position      int64           `json:"position"`
	Key           int64           `json:"key"`
	Intent        Intent          `json:"intent"`
	RecordVersion int32           `json:"record_version"`
	Timestamp     int64           `json:"timestamp"`
	Value         json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s value: %w", e.Intent, err)
	}
	return json.Marshal(eventJSON{
		Position:      e.Position,
		Key:           e.Key,
		Intent:        e.Intent,
		RecordVersion: e.RecordVersion,
		Timestamp:     e.Timestamp,
		Value:         value,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The value is decoded into the
// record type that belongs to the intent's value type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := DecodeRecordValue(raw.Intent, raw.Value)
	if err != nil {
		return err
	}
	*e = Event{
		Position:      raw.Position,
		Key:           raw.Key,
		Intent:        raw.Intent,
		RecordVersion: raw.RecordVersion,
		Timestamp:     raw.Timestamp,
		Value:         value,
	}
	return nil
}

// DecodeRecordValue decodes JSON into the record type of the intent.
// An empty payload yields a zero-valued record.
func DecodeRecordValue(intent Intent, data []byte) (RecordValue, error) {
	value, err := NewRecordValue(intent.ValueType())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", intent, err)
	}
	if len(data) == 0 || string(data) == "null" {
		return value, nil
	}
	if err := json.Unmarshal(data, value); err != nil {
		return nil, fmt.Errorf("decode %s value: %w", intent, err)
	}
	return value, nil
}
