package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// AuthorizationState reads authorizations by key and by owner.
type AuthorizationState interface {
	Get(ctx context.Context, authorizationKey int64) (*protocol.AuthorizationRecord, bool, error)

	// ByOwner returns the owner's authorizations in key order.
	ByOwner(ctx context.Context, ownerType protocol.EntityType, ownerID string) ([]*protocol.AuthorizationRecord, error)
}

// MutableAuthorizationState is the authorization state the appliers write.
type MutableAuthorizationState interface {
	AuthorizationState
	Create(ctx context.Context, authorizationKey int64, auth *protocol.AuthorizationRecord) error
	Update(ctx context.Context, authorizationKey int64, auth *protocol.AuthorizationRecord) error
	Delete(ctx context.Context, authorizationKey int64) error
	DeleteByOwner(ctx context.Context, ownerType protocol.EntityType, ownerID string) error
}

// DBAuthorizationState keeps authorizations and an owner index in the
// state database.
type DBAuthorizationState struct {
	byKey   *db.ColumnFamily[*protocol.AuthorizationRecord]
	byOwner *db.ColumnFamily[db.Nil]
}

// NewAuthorizationState returns the authorization partition of d.
func NewAuthorizationState(d *db.DB) *DBAuthorizationState {
	return &DBAuthorizationState{
		byKey:   db.NewColumnFamily[*protocol.AuthorizationRecord](d, cfAuthorizationByKey, "AUTHORIZATIONS"),
		byOwner: db.NewColumnFamily[db.Nil](d, cfAuthorizationByOwner, "AUTHORIZATION_KEYS_BY_OWNER"),
	}
}

func ownerKey(ownerType protocol.EntityType, ownerID string) db.Key {
	return db.NewKey().Text(string(ownerType)).Text(ownerID)
}

func (s *DBAuthorizationState) Get(ctx context.Context, authorizationKey int64) (*protocol.AuthorizationRecord, bool, error) {
	return s.byKey.Get(ctx, db.NewKey().Int64(authorizationKey))
}

func (s *DBAuthorizationState) ByOwner(ctx context.Context, ownerType protocol.EntityType, ownerID string) ([]*protocol.AuthorizationRecord, error) {
	keys, err := s.ownedKeys(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*protocol.AuthorizationRecord, 0, len(keys))
	for _, k := range keys {
		auth, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &db.InconsistencyError{ColumnFamily: s.byKey.Name(), Key: db.NewKey().Int64(k), Op: "get", Err: db.ErrKeyNotFound}
		}
		out = append(out, auth)
	}
	return out, nil
}

func (s *DBAuthorizationState) ownedKeys(ctx context.Context, ownerType protocol.EntityType, ownerID string) ([]int64, error) {
	prefix := ownerKey(ownerType, ownerID)
	entries, err := s.byOwner.Scan(ctx, prefix)
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

func (s *DBAuthorizationState) Create(ctx context.Context, authorizationKey int64, auth *protocol.AuthorizationRecord) error {
	stored := *auth
	stored.AuthorizationKey = authorizationKey
	if err := s.byKey.Insert(ctx, db.NewKey().Int64(authorizationKey), &stored); err != nil {
		return err
	}
	return s.byOwner.Insert(ctx, ownerKey(auth.OwnerType, auth.OwnerID).Int64(authorizationKey), db.Nil{})
}

// Update replaces the authorization, moving it in the owner index if the
// owner changed.
func (s *DBAuthorizationState) Update(ctx context.Context, authorizationKey int64, auth *protocol.AuthorizationRecord) error {
	key := db.NewKey().Int64(authorizationKey)
	old, ok, err := s.byKey.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: s.byKey.Name(), Key: key, Op: "update", Err: db.ErrKeyNotFound}
	}

	stored := *auth
	stored.AuthorizationKey = authorizationKey
	if err := s.byKey.Update(ctx, key, &stored); err != nil {
		return err
	}
	if old.OwnerType == auth.OwnerType && old.OwnerID == auth.OwnerID {
		return nil
	}
	if err := s.byOwner.DeleteIfExists(ctx, ownerKey(old.OwnerType, old.OwnerID).Int64(authorizationKey)); err != nil {
		return err
	}
	return s.byOwner.Upsert(ctx, ownerKey(auth.OwnerType, auth.OwnerID).Int64(authorizationKey), db.Nil{})
}

func (s *DBAuthorizationState) Delete(ctx context.Context, authorizationKey int64) error {
	key := db.NewKey().Int64(authorizationKey)
	auth, ok, err := s.byKey.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: s.byKey.Name(), Key: key, Op: "delete", Err: db.ErrKeyNotFound}
	}
	if err := s.byKey.Delete(ctx, key); err != nil {
		return err
	}
	return s.byOwner.DeleteIfExists(ctx, ownerKey(auth.OwnerType, auth.OwnerID).Int64(authorizationKey))
}

func (s *DBAuthorizationState) DeleteByOwner(ctx context.Context, ownerType protocol.EntityType, ownerID string) error {
	keys, err := s.ownedKeys(ctx, ownerType, ownerID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
