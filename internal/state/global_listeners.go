package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// GlobalListenersState reads the global listener configuration and which
// entities pin which version of it.
type GlobalListenersState interface {
	Current(ctx context.Context) (*protocol.GlobalListenerBatchRecord, bool, error)

	// Pinned returns the copy of the configuration pinned under version.
	Pinned(ctx context.Context, version int64) (*protocol.GlobalListenerBatchRecord, bool, error)

	// PinnedVersion returns the version the entity currently holds.
	PinnedVersion(ctx context.Context, entityKey int64) (int64, bool, error)

	// References returns the keys of the entities holding version, in key
	// order.
	References(ctx context.Context, version int64) ([]int64, error)
}

// MutableGlobalListenersState configures listeners and pins or releases
// versions for entities.
type MutableGlobalListenersState interface {
	GlobalListenersState

	// UpdateCurrent replaces the current configuration. Pinned copies are
	// left untouched.
	UpdateCurrent(ctx context.Context, batch *protocol.GlobalListenerBatchRecord) error

	// PinCurrent makes entityKey hold the current configuration, storing a
	// copy under its version if none exists yet. A pin the entity already
	// holds is released first. It reports false if there is no current
	// configuration to pin.
	PinCurrent(ctx context.Context, entityKey int64) (int64, bool, error)

	// Release drops the entity's pin. The pinned copy is deleted with its
	// last reference.
	Release(ctx context.Context, entityKey int64) error
}

// DBGlobalListenersState keeps the current configuration, pinned copies by
// version, and the set of entities referencing each copy.
type DBGlobalListenersState struct {
	current    *db.ColumnFamily[*protocol.GlobalListenerBatchRecord]
	pinned     *db.ColumnFamily[*protocol.GlobalListenerBatchRecord]
	references *db.ColumnFamily[db.Nil]
	entityPin  *db.ColumnFamily[int64]
}

// NewGlobalListenersState returns the global listener partition of d.
func NewGlobalListenersState(d *db.DB) *DBGlobalListenersState {
	return &DBGlobalListenersState{
		current:    db.NewColumnFamily[*protocol.GlobalListenerBatchRecord](d, cfGlobalListenersCurrent, "GLOBAL_LISTENERS_CURRENT"),
		pinned:     db.NewColumnFamily[*protocol.GlobalListenerBatchRecord](d, cfGlobalListenersPinned, "GLOBAL_LISTENERS_PINNED"),
		references: db.NewColumnFamily[db.Nil](d, cfGlobalListenersPinReferences, "GLOBAL_LISTENERS_PIN_REFERENCES"),
		entityPin:  db.NewColumnFamily[int64](d, cfGlobalListenersEntityPin, "GLOBAL_LISTENERS_PIN_BY_ENTITY"),
	}
}

func (s *DBGlobalListenersState) Current(ctx context.Context) (*protocol.GlobalListenerBatchRecord, bool, error) {
	return s.current.Get(ctx, singleton)
}

func (s *DBGlobalListenersState) Pinned(ctx context.Context, version int64) (*protocol.GlobalListenerBatchRecord, bool, error) {
	return s.pinned.Get(ctx, db.NewKey().Int64(version))
}

func (s *DBGlobalListenersState) PinnedVersion(ctx context.Context, entityKey int64) (int64, bool, error) {
	return s.entityPin.Get(ctx, db.NewKey().Int64(entityKey))
}

func (s *DBGlobalListenersState) References(ctx context.Context, version int64) ([]int64, error) {
	prefix := db.NewKey().Int64(version)
	entries, err := s.references.Scan(ctx, prefix)
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

func (s *DBGlobalListenersState) UpdateCurrent(ctx context.Context, batch *protocol.GlobalListenerBatchRecord) error {
	return s.current.Upsert(ctx, singleton, batch.Clone())
}

func (s *DBGlobalListenersState) PinCurrent(ctx context.Context, entityKey int64) (int64, bool, error) {
	current, ok, err := s.Current(ctx)
	if err != nil || !ok {
		return 0, false, err
	}
	if err := s.Release(ctx, entityKey); err != nil {
		return 0, false, err
	}

	version := current.GlobalListenerBatchKey
	versionKey := db.NewKey().Int64(version)
	exists, err := s.pinned.Exists(ctx, versionKey)
	if err != nil {
		return 0, false, err
	}
	if !exists {
		if err := s.pinned.Insert(ctx, versionKey, current.Clone()); err != nil {
			return 0, false, err
		}
	}
	if err := s.references.Upsert(ctx, versionKey.Int64(entityKey), db.Nil{}); err != nil {
		return 0, false, err
	}
	if err := s.entityPin.Upsert(ctx, db.NewKey().Int64(entityKey), version); err != nil {
		return 0, false, err
	}
	return version, true, nil
}

func (s *DBGlobalListenersState) Release(ctx context.Context, entityKey int64) error {
	entity := db.NewKey().Int64(entityKey)
	version, ok, err := s.entityPin.Get(ctx, entity)
	if err != nil || !ok {
		return err
	}
	versionKey := db.NewKey().Int64(version)
	if err := s.entityPin.Delete(ctx, entity); err != nil {
		return err
	}
	if err := s.references.DeleteIfExists(ctx, versionKey.Int64(entityKey)); err != nil {
		return err
	}

	remaining, err := s.references.Scan(ctx, versionKey)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}
	return s.pinned.DeleteIfExists(ctx, versionKey)
}
