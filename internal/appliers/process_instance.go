package appliers

import (
	"context"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type elementActivatingApplier struct {
	elementInstances state.MutableElementInstanceState
}

func (a *elementActivatingApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.ProcessInstanceRecord](value)
	if err != nil {
		return err
	}
	stored := *rec
	return a.elementInstances.NewInstance(ctx, key, &stored, protocol.ProcessInstanceElementActivating)
}

// elementStateApplier moves an existing element instance to the state
// named by its intent.
type elementStateApplier struct {
	elementInstances state.MutableElementInstanceState
	state            protocol.Intent
}

func (a *elementStateApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return a.elementInstances.SetState(ctx, key, a.state)
}

// elementRemovedApplier drops a completed or terminated element instance.
type elementRemovedApplier struct {
	elementInstances state.MutableElementInstanceState
}

func (a *elementRemovedApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return a.elementInstances.RemoveInstance(ctx, key)
}

// sequenceFlowTakenApplier counts the flow in its scope, and at the
// target gateway if that gateway joins several incoming flows.
type sequenceFlowTakenApplier struct {
	elementInstances state.MutableElementInstanceState
}

func (a *sequenceFlowTakenApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	flow, err := recordAs[*protocol.ProcessInstanceRecord](value)
	if err != nil {
		return err
	}
	if err := a.elementInstances.TakeSequenceFlow(ctx, flow.FlowScopeKey, flow.ElementID); err != nil {
		return err
	}
	if !flow.TargetsJoiningGateway() {
		return nil
	}
	return a.elementInstances.IncrementTakenSequenceFlow(ctx, flow.FlowScopeKey, flow.TargetElementID, flow.ElementID)
}

type sequenceFlowDeletedApplier struct {
	elementInstances state.MutableElementInstanceState
}

func (a *sequenceFlowDeletedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	flow, err := recordAs[*protocol.ProcessInstanceRecord](value)
	if err != nil {
		return err
	}
	if err := a.elementInstances.ConsumeSequenceFlow(ctx, flow.FlowScopeKey, flow.ElementID); err != nil {
		return err
	}
	if !flow.TargetsJoiningGateway() {
		return nil
	}
	return a.elementInstances.DecrementTakenSequenceFlow(ctx, flow.FlowScopeKey, flow.TargetElementID, flow.ElementID)
}

type elementMigratedApplier struct {
	elementInstances state.MutableElementInstanceState
}

func (a *elementMigratedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.ProcessInstanceRecord](value)
	if err != nil {
		return err
	}
	return a.elementInstances.Migrate(ctx, key, rec, 0)
}

// elementMigratedV2Applier also moves the instance to a new flow scope when
// the record names one.
type elementMigratedV2Applier struct {
	elementInstances state.MutableElementInstanceState
}

func (a *elementMigratedV2Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.ProcessInstanceRecord](value)
	if err != nil {
		return err
	}
	return a.elementInstances.Migrate(ctx, key, rec, rec.FlowScopeKey)
}

type processInstanceCreatedV2Applier struct {
	usageMetrics state.MutableUsageMetricState
}

func (a *processInstanceCreatedV2Applier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.ProcessInstanceCreationRecord](value)
	if err != nil {
		return err
	}
	return a.usageMetrics.RecordRPI(ctx, rec.TenantID)
}
