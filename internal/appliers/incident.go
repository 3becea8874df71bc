package appliers

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type incidentCreatedApplier struct {
	incidents state.MutableIncidentState
}

func (a *incidentCreatedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	incident, err := recordAs[*protocol.IncidentRecord](value)
	if err != nil {
		return err
	}
	return a.incidents.Create(ctx, key, incident)
}

// incidentResolvedApplier deletes the incident and hands its job back to
// the workers. A job whose element id was replaced because no catch event
// matched its error gets the incident's element id back.
type incidentResolvedApplier struct {
	incidents state.MutableIncidentState
	jobs      state.MutableJobState
}

func (a *incidentResolvedApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	incident, err := loadIncident(ctx, a.incidents, key)
	if err != nil {
		return err
	}
	if err := resolveJob(ctx, a.jobs, incident, func() (string, error) {
		return incident.ElementID, nil
	}); err != nil {
		return err
	}
	return a.incidents.Delete(ctx, key)
}

// incidentResolvedV2Applier restores the element id the element instance
// has now, which differs from the incident's after a migration.
type incidentResolvedV2Applier struct {
	incidents        state.MutableIncidentState
	jobs             state.MutableJobState
	elementInstances state.ElementInstanceState
}

func (a *incidentResolvedV2Applier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	incident, err := loadIncident(ctx, a.incidents, key)
	if err != nil {
		return err
	}
	if err := resolveJob(ctx, a.jobs, incident, func() (string, error) {
		inst, ok, err := a.elementInstances.Get(ctx, incident.ElementInstanceKey)
		if err != nil {
			return "", err
		}
		if ok && inst.Record.ElementID != incident.ElementID {
			return inst.Record.ElementID, nil
		}
		return incident.ElementID, nil
	}); err != nil {
		return err
	}
	return a.incidents.Delete(ctx, key)
}

type incidentMigratedApplier struct {
	incidents state.MutableIncidentState
}

func (a *incidentMigratedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.IncidentRecord](value)
	if err != nil {
		return err
	}
	incident, err := loadIncident(ctx, a.incidents, key)
	if err != nil {
		return err
	}
	incident.BpmnProcessID = rec.BpmnProcessID
	incident.ProcessDefinitionKey = rec.ProcessDefinitionKey
	incident.ElementID = rec.ElementID
	return a.incidents.Update(ctx, key, incident)
}

func loadIncident(ctx context.Context, incidents state.IncidentState, key int64) (*protocol.IncidentRecord, error) {
	incident, ok, err := incidents.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &db.InconsistencyError{ColumnFamily: "INCIDENTS", Key: db.NewKey().Int64(key), Op: "resolve", Err: db.ErrKeyNotFound}
	}
	return incident, nil
}

// resolveJob makes the incident's job activatable again, restoring its
// element id with restore if it holds the no-catch-event placeholder.
func resolveJob(ctx context.Context, jobs state.MutableJobState, incident *protocol.IncidentRecord, restore func() (string, error)) error {
	if incident.JobKey <= 0 {
		return nil
	}
	job, ok, err := jobs.Get(ctx, incident.JobKey)
	if err != nil || !ok {
		return err
	}
	if job.ElementID == protocol.NoCatchEventFound {
		elementID, err := restore()
		if err != nil {
			return err
		}
		job.ElementID = elementID
	}
	return jobs.Resolve(ctx, incident.JobKey, job)
}
