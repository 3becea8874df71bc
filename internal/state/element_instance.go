package state

import (
	"context"
	"slices"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// ElementInstance is the running state of one flow node instance.
type ElementInstance struct {
	Key    int64                           `json:"key"`
	State  protocol.Intent                 `json:"state"`
	Record *protocol.ProcessInstanceRecord `json:"record"`

	// ActiveSequenceFlows counts the sequence flows taken inside this scope
	// that have not been consumed yet. ActiveSequenceFlowIDs holds their
	// ids, one entry per taken flow.
	ActiveSequenceFlows   int32    `json:"active_sequence_flows"`
	ActiveSequenceFlowIDs []string `json:"active_sequence_flow_ids,omitempty"`

	ChildCount int32 `json:"child_count"`
}

// IsProcessInstance reports whether the instance is the root of a process
// instance.
func (e *ElementInstance) IsProcessInstance() bool {
	return e.Key == e.Record.ProcessInstanceKey
}

// ElementInstanceState reads element instances and the sequence flows taken
// in their scopes.
type ElementInstanceState interface {
	Get(ctx context.Context, key int64) (*ElementInstance, bool, error)
	Children(ctx context.Context, parentKey int64) ([]*ElementInstance, error)
	ProcessInstanceKeysByDefinitionKey(ctx context.Context, processDefinitionKey int64) ([]int64, error)

	// NumberOfTakenSequenceFlows returns how many distinct incoming flows of
	// the gateway have been taken and not consumed. A joining gateway can
	// activate once this reaches its number of incoming flows.
	NumberOfTakenSequenceFlows(ctx context.Context, flowScopeKey int64, gatewayID string) (int, error)
}

// MutableElementInstanceState is the element instance state the process
// instance appliers write.
type MutableElementInstanceState interface {
	ElementInstanceState
	NewInstance(ctx context.Context, key int64, record *protocol.ProcessInstanceRecord, state protocol.Intent) error
	SetState(ctx context.Context, key int64, state protocol.Intent) error
	RemoveInstance(ctx context.Context, key int64) error

	TakeSequenceFlow(ctx context.Context, flowScopeKey int64, flowID string) error
	ConsumeSequenceFlow(ctx context.Context, flowScopeKey int64, flowID string) error
	IncrementTakenSequenceFlow(ctx context.Context, flowScopeKey int64, gatewayID, flowID string) error
	DecrementTakenSequenceFlow(ctx context.Context, flowScopeKey int64, gatewayID, flowID string) error

	// Migrate rewrites the definition fields of the instance. The flow
	// scope is only moved when flowScopeKey is positive.
	Migrate(ctx context.Context, key int64, target *protocol.ProcessInstanceRecord, flowScopeKey int64) error
}

// DBElementInstanceState keeps element instances with a parent index and a
// process definition index.
type DBElementInstanceState struct {
	byKey        *db.ColumnFamily[*ElementInstance]
	children     *db.ColumnFamily[db.Nil]
	byDefinition *db.ColumnFamily[db.Nil]
	takenFlows   *db.ColumnFamily[int32]
}

// NewElementInstanceState returns the element instance partition of d.
func NewElementInstanceState(d *db.DB) *DBElementInstanceState {
	return &DBElementInstanceState{
		byKey:        db.NewColumnFamily[*ElementInstance](d, cfElementInstanceByKey, "ELEMENT_INSTANCE_KEY"),
		children:     db.NewColumnFamily[db.Nil](d, cfElementInstanceChildren, "ELEMENT_INSTANCE_PARENT_CHILD"),
		byDefinition: db.NewColumnFamily[db.Nil](d, cfProcessInstanceByDefinitionKey, "PROCESS_INSTANCE_KEY_BY_DEFINITION_KEY"),
		takenFlows:   db.NewColumnFamily[int32](d, cfTakenSequenceFlows, "NUMBER_OF_TAKEN_SEQUENCE_FLOWS"),
	}
}

func (s *DBElementInstanceState) Get(ctx context.Context, key int64) (*ElementInstance, bool, error) {
	return s.byKey.Get(ctx, db.NewKey().Int64(key))
}

func (s *DBElementInstanceState) mustGet(ctx context.Context, key int64, op string) (*ElementInstance, error) {
	inst, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &db.InconsistencyError{ColumnFamily: s.byKey.Name(), Key: db.NewKey().Int64(key), Op: op, Err: db.ErrKeyNotFound}
	}
	return inst, nil
}

func (s *DBElementInstanceState) put(ctx context.Context, inst *ElementInstance) error {
	return s.byKey.Update(ctx, db.NewKey().Int64(inst.Key), inst)
}

func (s *DBElementInstanceState) Children(ctx context.Context, parentKey int64) ([]*ElementInstance, error) {
	prefix := db.NewKey().Int64(parentKey)
	entries, err := s.children.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*ElementInstance, 0, len(entries))
	for _, e := range entries {
		r := db.ReadKey(e.Key)
		if err := r.Skip(prefix); err != nil {
			return nil, err
		}
		childKey, err := r.Int64()
		if err != nil {
			return nil, err
		}
		child, err := s.mustGet(ctx, childKey, "get")
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func (s *DBElementInstanceState) ProcessInstanceKeysByDefinitionKey(ctx context.Context, processDefinitionKey int64) ([]int64, error) {
	prefix := db.NewKey().Int64(processDefinitionKey)
	entries, err := s.byDefinition.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]int64, 0, len(entries))
	for _, e := range entries {
		r := db.ReadKey(e.Key)
		if err := r.Skip(prefix); err != nil {
			return nil, err
		}
		k, err := r.Int64()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *DBElementInstanceState) NumberOfTakenSequenceFlows(ctx context.Context, flowScopeKey int64, gatewayID string) (int, error) {
	entries, err := s.takenFlows.Scan(ctx, db.NewKey().Int64(flowScopeKey).Text(gatewayID))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Value > 0 {
			n++
		}
	}
	return n, nil
}

// NewInstance stores a fresh instance and attaches it to its flow scope.
func (s *DBElementInstanceState) NewInstance(ctx context.Context, key int64, record *protocol.ProcessInstanceRecord, state protocol.Intent) error {
	inst := &ElementInstance{Key: key, State: state, Record: record}
	if err := s.byKey.Insert(ctx, db.NewKey().Int64(key), inst); err != nil {
		return err
	}
	if inst.IsProcessInstance() {
		if err := s.byDefinition.Upsert(ctx, db.NewKey().Int64(record.ProcessDefinitionKey).Int64(key), db.Nil{}); err != nil {
			return err
		}
	}
	return s.attach(ctx, record.FlowScopeKey, key)
}

func (s *DBElementInstanceState) attach(ctx context.Context, parentKey, childKey int64) error {
	if parentKey <= 0 {
		return nil
	}
	parent, ok, err := s.Get(ctx, parentKey)
	if err != nil || !ok {
		return err
	}
	if err := s.children.Upsert(ctx, db.NewKey().Int64(parentKey).Int64(childKey), db.Nil{}); err != nil {
		return err
	}
	parent.ChildCount++
	return s.put(ctx, parent)
}

func (s *DBElementInstanceState) detach(ctx context.Context, parentKey, childKey int64) error {
	if parentKey <= 0 {
		return nil
	}
	if err := s.children.DeleteIfExists(ctx, db.NewKey().Int64(parentKey).Int64(childKey)); err != nil {
		return err
	}
	parent, ok, err := s.Get(ctx, parentKey)
	if err != nil || !ok {
		return err
	}
	if parent.ChildCount > 0 {
		parent.ChildCount--
	}
	return s.put(ctx, parent)
}

func (s *DBElementInstanceState) SetState(ctx context.Context, key int64, state protocol.Intent) error {
	inst, err := s.mustGet(ctx, key, "update")
	if err != nil {
		return err
	}
	inst.State = state
	return s.put(ctx, inst)
}

// RemoveInstance deletes the instance together with its index entries and
// the taken-flow counters of its scope.
func (s *DBElementInstanceState) RemoveInstance(ctx context.Context, key int64) error {
	inst, err := s.mustGet(ctx, key, "delete")
	if err != nil {
		return err
	}
	if err := s.byKey.Delete(ctx, db.NewKey().Int64(key)); err != nil {
		return err
	}
	if inst.IsProcessInstance() {
		if err := s.byDefinition.DeleteIfExists(ctx, db.NewKey().Int64(inst.Record.ProcessDefinitionKey).Int64(key)); err != nil {
			return err
		}
	}
	if _, err := s.children.DeletePrefix(ctx, db.NewKey().Int64(key)); err != nil {
		return err
	}
	if _, err := s.takenFlows.DeletePrefix(ctx, db.NewKey().Int64(key)); err != nil {
		return err
	}
	return s.detach(ctx, inst.Record.FlowScopeKey, key)
}

func (s *DBElementInstanceState) TakeSequenceFlow(ctx context.Context, flowScopeKey int64, flowID string) error {
	scope, err := s.mustGet(ctx, flowScopeKey, "update")
	if err != nil {
		return err
	}
	scope.ActiveSequenceFlows++
	scope.ActiveSequenceFlowIDs = append(scope.ActiveSequenceFlowIDs, flowID)
	return s.put(ctx, scope)
}

// ConsumeSequenceFlow removes one occurrence of the flow from the scope.
// The counter never drops below zero.
func (s *DBElementInstanceState) ConsumeSequenceFlow(ctx context.Context, flowScopeKey int64, flowID string) error {
	scope, err := s.mustGet(ctx, flowScopeKey, "update")
	if err != nil {
		return err
	}
	if scope.ActiveSequenceFlows > 0 {
		scope.ActiveSequenceFlows--
	}
	if i := slices.Index(scope.ActiveSequenceFlowIDs, flowID); i >= 0 {
		scope.ActiveSequenceFlowIDs = slices.Delete(scope.ActiveSequenceFlowIDs, i, i+1)
	}
	return s.put(ctx, scope)
}

func takenFlowKey(flowScopeKey int64, gatewayID, flowID string) db.Key {
	return db.NewKey().Int64(flowScopeKey).Text(gatewayID).Text(flowID)
}

func (s *DBElementInstanceState) IncrementTakenSequenceFlow(ctx context.Context, flowScopeKey int64, gatewayID, flowID string) error {
	key := takenFlowKey(flowScopeKey, gatewayID, flowID)
	n, _, err := s.takenFlows.Get(ctx, key)
	if err != nil {
		return err
	}
	return s.takenFlows.Upsert(ctx, key, n+1)
}

func (s *DBElementInstanceState) DecrementTakenSequenceFlow(ctx context.Context, flowScopeKey int64, gatewayID, flowID string) error {
	key := takenFlowKey(flowScopeKey, gatewayID, flowID)
	n, ok, err := s.takenFlows.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	if n <= 1 {
		return s.takenFlows.Delete(ctx, key)
	}
	return s.takenFlows.Update(ctx, key, n-1)
}

func (s *DBElementInstanceState) Migrate(ctx context.Context, key int64, target *protocol.ProcessInstanceRecord, flowScopeKey int64) error {
	inst, err := s.mustGet(ctx, key, "update")
	if err != nil {
		return err
	}
	oldDefinitionKey := inst.Record.ProcessDefinitionKey
	oldFlowScopeKey := inst.Record.FlowScopeKey

	rec := *inst.Record
	rec.ProcessDefinitionKey = target.ProcessDefinitionKey
	rec.BpmnProcessID = target.BpmnProcessID
	rec.Version = target.Version
	rec.ElementID = target.ElementID
	if flowScopeKey > 0 {
		rec.FlowScopeKey = flowScopeKey
	}
	inst.Record = &rec
	if err := s.put(ctx, inst); err != nil {
		return err
	}

	if inst.IsProcessInstance() && oldDefinitionKey != rec.ProcessDefinitionKey {
		if err := s.byDefinition.DeleteIfExists(ctx, db.NewKey().Int64(oldDefinitionKey).Int64(key)); err != nil {
			return err
		}
		if err := s.byDefinition.Upsert(ctx, db.NewKey().Int64(rec.ProcessDefinitionKey).Int64(key), db.Nil{}); err != nil {
			return err
		}
	}

	if rec.FlowScopeKey != oldFlowScopeKey {
		if err := s.detach(ctx, oldFlowScopeKey, key); err != nil {
			return err
		}
		return s.attach(ctx, rec.FlowScopeKey, key)
	}
	return nil
}
