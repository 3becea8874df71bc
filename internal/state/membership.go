package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// Member is one entity attached to a role, group or tenant.
type Member struct {
	EntityType protocol.EntityType `json:"entity_type"`
	EntityID   string              `json:"entity_id"`
}

// MembershipState reads which entities belong to which roles, groups and
// tenants, in both directions.
type MembershipState interface {
	HasRelation(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType, relationID string) (bool, error)

	// Relations returns the ids of every relation of the given kind the
	// entity belongs to, in id order.
	Relations(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType) ([]string, error)

	// Members returns every entity attached to the relation, ordered by
	// entity type then id.
	Members(ctx context.Context, relation protocol.EntityType, relationID string) ([]Member, error)
}

// MutableMembershipState adds and removes memberships.
type MutableMembershipState interface {
	MembershipState
	InsertRelation(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType, relationID string) error
	DeleteRelation(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType, relationID string) error

	// DeleteAll drops every membership the entity takes part in, both as a
	// member and as the relation others are members of.
	DeleteAll(ctx context.Context, entityType protocol.EntityType, entityID string) error
}

// DBMembershipState stores each membership twice, once keyed by the
// member and once by the relation.
type DBMembershipState struct {
	byEntity   *db.ColumnFamily[db.Nil]
	byRelation *db.ColumnFamily[db.Nil]
}

// NewMembershipState returns the membership partition of d.
func NewMembershipState(d *db.DB) *DBMembershipState {
	return &DBMembershipState{
		byEntity:   db.NewColumnFamily[db.Nil](d, cfMembershipByEntity, "MEMBERSHIP_BY_ENTITY"),
		byRelation: db.NewColumnFamily[db.Nil](d, cfMembershipByRelation, "MEMBERSHIP_BY_RELATION"),
	}
}

func entityPrefix(entityType protocol.EntityType, entityID string) db.Key {
	return db.NewKey().Text(string(entityType)).Text(entityID)
}

func (s *DBMembershipState) keys(entityType protocol.EntityType, entityID string, relation protocol.EntityType, relationID string) (db.Key, db.Key) {
	byEntity := entityPrefix(entityType, entityID).Text(string(relation)).Text(relationID)
	byRelation := entityPrefix(relation, relationID).Text(string(entityType)).Text(entityID)
	return byEntity, byRelation
}

func (s *DBMembershipState) HasRelation(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType, relationID string) (bool, error) {
	key, _ := s.keys(entityType, entityID, relation, relationID)
	return s.byEntity.Exists(ctx, key)
}

func (s *DBMembershipState) Relations(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType) ([]string, error) {
	prefix := entityPrefix(entityType, entityID).Text(string(relation))
	entries, err := s.byEntity.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		r := db.ReadKey(e.Key)
		if err := r.Skip(prefix); err != nil {
			return nil, err
		}
		id, err := r.Text()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *DBMembershipState) Members(ctx context.Context, relation protocol.EntityType, relationID string) ([]Member, error) {
	return s.scanPairs(ctx, s.byRelation, entityPrefix(relation, relationID))
}

func (s *DBMembershipState) scanPairs(ctx context.Context, cf *db.ColumnFamily[db.Nil], prefix db.Key) ([]Member, error) {
	entries, err := cf.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(entries))
	for _, e := range entries {
		r := db.ReadKey(e.Key)
		if err := r.Skip(prefix); err != nil {
			return nil, err
		}
		typ, err := r.Text()
		if err != nil {
			return nil, err
		}
		id, err := r.Text()
		if err != nil {
			return nil, err
		}
		members = append(members, Member{EntityType: protocol.EntityType(typ), EntityID: id})
	}
	return members, nil
}

func (s *DBMembershipState) InsertRelation(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType, relationID string) error {
	byEntity, byRelation := s.keys(entityType, entityID, relation, relationID)
	if err := s.byEntity.Insert(ctx, byEntity, db.Nil{}); err != nil {
		return err
	}
	return s.byRelation.Insert(ctx, byRelation, db.Nil{})
}

func (s *DBMembershipState) DeleteRelation(ctx context.Context, entityType protocol.EntityType, entityID string, relation protocol.EntityType, relationID string) error {
	byEntity, byRelation := s.keys(entityType, entityID, relation, relationID)
	if err := s.byEntity.Delete(ctx, byEntity); err != nil {
		return err
	}
	return s.byRelation.Delete(ctx, byRelation)
}

func (s *DBMembershipState) DeleteAll(ctx context.Context, entityType protocol.EntityType, entityID string) error {
	prefix := entityPrefix(entityType, entityID)

	relations, err := s.scanPairs(ctx, s.byEntity, prefix)
	if err != nil {
		return err
	}
	for _, rel := range relations {
		if err := s.DeleteRelation(ctx, entityType, entityID, rel.EntityType, rel.EntityID); err != nil {
			return err
		}
	}

	members, err := s.scanPairs(ctx, s.byRelation, prefix)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := s.DeleteRelation(ctx, m.EntityType, m.EntityID, entityType, entityID); err != nil {
			return err
		}
	}
	return nil
}
