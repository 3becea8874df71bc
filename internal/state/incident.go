package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// IncidentState reads incidents by key and by the job or element that
// raised them.
type IncidentState interface {
	Get(ctx context.Context, incidentKey int64) (*protocol.IncidentRecord, bool, error)
	IncidentKeyByJobKey(ctx context.Context, jobKey int64) (int64, bool, error)
	IncidentKeyByElementInstance(ctx context.Context, elementInstanceKey int64) (int64, bool, error)
}

// MutableIncidentState is the incident state the incident appliers write.
type MutableIncidentState interface {
	IncidentState
	Create(ctx context.Context, incidentKey int64, incident *protocol.IncidentRecord) error
	Update(ctx context.Context, incidentKey int64, incident *protocol.IncidentRecord) error
	Delete(ctx context.Context, incidentKey int64) error
}

// DBIncidentState indexes job incidents by job key and every other
// incident by the element instance it was raised for.
type DBIncidentState struct {
	byKey             *db.ColumnFamily[*protocol.IncidentRecord]
	byJobKey          *db.ColumnFamily[int64]
	byElementInstance *db.ColumnFamily[int64]
}

// NewIncidentState returns the incident partition of d.
func NewIncidentState(d *db.DB) *DBIncidentState {
	return &DBIncidentState{
		byKey:             db.NewColumnFamily[*protocol.IncidentRecord](d, cfIncidentByKey, "INCIDENTS"),
		byJobKey:          db.NewColumnFamily[int64](d, cfIncidentByJobKey, "INCIDENT_JOBS"),
		byElementInstance: db.NewColumnFamily[int64](d, cfIncidentByElementInstance, "INCIDENT_PROCESS_INSTANCES"),
	}
}

func (s *DBIncidentState) Get(ctx context.Context, incidentKey int64) (*protocol.IncidentRecord, bool, error) {
	return s.byKey.Get(ctx, db.NewKey().Int64(incidentKey))
}

func (s *DBIncidentState) IncidentKeyByJobKey(ctx context.Context, jobKey int64) (int64, bool, error) {
	return s.byJobKey.Get(ctx, db.NewKey().Int64(jobKey))
}

func (s *DBIncidentState) IncidentKeyByElementInstance(ctx context.Context, elementInstanceKey int64) (int64, bool, error) {
	return s.byElementInstance.Get(ctx, db.NewKey().Int64(elementInstanceKey))
}

func (s *DBIncidentState) indexKey(incident *protocol.IncidentRecord) (*db.ColumnFamily[int64], db.Key) {
	if incident.JobKey > 0 {
		return s.byJobKey, db.NewKey().Int64(incident.JobKey)
	}
	return s.byElementInstance, db.NewKey().Int64(incident.ElementInstanceKey)
}

func (s *DBIncidentState) Create(ctx context.Context, incidentKey int64, incident *protocol.IncidentRecord) error {
	stored := *incident
	if err := s.byKey.Insert(ctx, db.NewKey().Int64(incidentKey), &stored); err != nil {
		return err
	}
	index, key := s.indexKey(incident)
	return index.Upsert(ctx, key, incidentKey)
}

// Update replaces a stored incident. The job and element instance it
// belongs to never change, so the indexes stay as they are.
func (s *DBIncidentState) Update(ctx context.Context, incidentKey int64, incident *protocol.IncidentRecord) error {
	stored := *incident
	return s.byKey.Update(ctx, db.NewKey().Int64(incidentKey), &stored)
}

func (s *DBIncidentState) Delete(ctx context.Context, incidentKey int64) error {
	key := db.NewKey().Int64(incidentKey)
	incident, ok, err := s.byKey.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: s.byKey.Name(), Key: key, Op: "delete", Err: db.ErrKeyNotFound}
	}
	if err := s.byKey.Delete(ctx, key); err != nil {
		return err
	}

	index, indexKey := s.indexKey(incident)
	current, ok, err := index.Get(ctx, indexKey)
	if err != nil || !ok || current != incidentKey {
		return err
	}
	return index.Delete(ctx, indexKey)
}
