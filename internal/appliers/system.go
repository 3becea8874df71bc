package appliers

import (
	"context"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type variableSetApplier struct {
	variables state.MutableVariableState
}

func (a *variableSetApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	variable, err := recordAs[*protocol.VariableRecord](value)
	if err != nil {
		return err
	}
	return a.variables.SetVariable(ctx, variable)
}

// variableDocumentUpdatingApplier stages the update until the scope's
// owner accepts or denies it.
type variableDocumentUpdatingApplier struct {
	variables state.MutableVariableState
}

func (a *variableDocumentUpdatingApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	doc, err := recordAs[*protocol.VariableDocumentRecord](value)
	if err != nil {
		return err
	}
	return a.variables.StoreVariableDocument(ctx, doc)
}

// variableDocumentResolvedApplier drops the staged update once it was
// applied or denied. Applied variables arrive as separate variable events.
type variableDocumentResolvedApplier struct {
	variables state.MutableVariableState
}

func (a *variableDocumentResolvedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	doc, err := recordAs[*protocol.VariableDocumentRecord](value)
	if err != nil {
		return err
	}
	return a.variables.RemoveVariableDocument(ctx, doc.ScopeKey)
}

type clockPinnedApplier struct {
	clock state.MutableClockState
}

func (a *clockPinnedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.ClockRecord](value)
	if err != nil {
		return err
	}
	return a.clock.Pin(ctx, rec.Time)
}

type clockResettedApplier struct {
	clock state.MutableClockState
}

func (a *clockResettedApplier) ApplyState(ctx context.Context, _ int64, _ protocol.RecordValue) error {
	return a.clock.Reset(ctx)
}

// usageMetricExportedApplier rotates the active bucket to start at the
// reset time. A repeated export for the same reset time changes nothing.
type usageMetricExportedApplier struct {
	usageMetrics state.MutableUsageMetricState
}

func (a *usageMetricExportedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UsageMetricRecord](value)
	if err != nil {
		return err
	}
	return a.usageMetrics.ResetActiveBucket(ctx, rec.ResetTime)
}

// globalListenersConfiguredApplier replaces the current global listener
// configuration. The event key becomes the configuration's version.
type globalListenersConfiguredApplier struct {
	globalListeners state.MutableGlobalListenersState
}

func (a *globalListenersConfiguredApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.GlobalListenerBatchRecord](value)
	if err != nil {
		return err
	}
	batch := rec.Clone()
	batch.GlobalListenerBatchKey = key
	return a.globalListeners.UpdateCurrent(ctx, batch)
}

type decisionEvaluatedV2Applier struct {
	usageMetrics state.MutableUsageMetricState
}

func (a *decisionEvaluatedV2Applier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.DecisionEvaluationRecord](value)
	if err != nil {
		return err
	}
	return a.usageMetrics.RecordEDI(ctx, rec.TenantID)
}

// noopApplier is registered for events that leave state untouched, so
// that every event intent still has an applier.
type noopApplier struct{}

func (noopApplier) ApplyState(context.Context, int64, protocol.RecordValue) error {
	return nil
}
