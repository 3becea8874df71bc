package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// MappingRuleState reads mapping rules by ID.
type MappingRuleState interface {
	Get(ctx context.Context, mappingRuleID string) (*protocol.MappingRuleRecord, bool, error)
	GetByKey(ctx context.Context, mappingRuleKey int64) (*protocol.MappingRuleRecord, bool, error)
	GetByClaim(ctx context.Context, claimName, claimValue string) (*protocol.MappingRuleRecord, bool, error)
}

// MutableMappingRuleState is the mapping rule state the identity appliers
// write.
type MutableMappingRuleState interface {
	MappingRuleState
	Create(ctx context.Context, rule *protocol.MappingRuleRecord) error
	Update(ctx context.Context, rule *protocol.MappingRuleRecord) error
	Delete(ctx context.Context, mappingRuleID string) error
}

// DBMappingRuleState keeps mapping rules by id, with key and claim indexes.
type DBMappingRuleState struct {
	byID    *db.ColumnFamily[*protocol.MappingRuleRecord]
	byKey   *db.ColumnFamily[string]
	byClaim *db.ColumnFamily[string]
}

// NewMappingRuleState returns the mapping rule partition of d.
func NewMappingRuleState(d *db.DB) *DBMappingRuleState {
	return &DBMappingRuleState{
		byID:    db.NewColumnFamily[*protocol.MappingRuleRecord](d, cfMappingRuleByID, "MAPPING_RULES"),
		byKey:   db.NewColumnFamily[string](d, cfMappingRuleByKey, "MAPPING_RULE_ID_BY_KEY"),
		byClaim: db.NewColumnFamily[string](d, cfMappingRuleByClaim, "MAPPING_RULE_ID_BY_CLAIM"),
	}
}

func claimKey(name, value string) db.Key {
	return db.NewKey().Text(name).Text(value)
}

func (s *DBMappingRuleState) Get(ctx context.Context, mappingRuleID string) (*protocol.MappingRuleRecord, bool, error) {
	return s.byID.Get(ctx, db.NewKey().Text(mappingRuleID))
}

func (s *DBMappingRuleState) GetByKey(ctx context.Context, mappingRuleKey int64) (*protocol.MappingRuleRecord, bool, error) {
	id, ok, err := s.byKey.Get(ctx, db.NewKey().Int64(mappingRuleKey))
	if err != nil || !ok {
		return nil, false, err
	}
	return s.Get(ctx, id)
}

func (s *DBMappingRuleState) GetByClaim(ctx context.Context, claimName, claimValue string) (*protocol.MappingRuleRecord, bool, error) {
	id, ok, err := s.byClaim.Get(ctx, claimKey(claimName, claimValue))
	if err != nil || !ok {
		return nil, false, err
	}
	return s.Get(ctx, id)
}

func (s *DBMappingRuleState) Create(ctx context.Context, rule *protocol.MappingRuleRecord) error {
	if err := s.byID.Insert(ctx, db.NewKey().Text(rule.MappingRuleID), rule); err != nil {
		return err
	}
	if err := s.byKey.Insert(ctx, db.NewKey().Int64(rule.MappingRuleKey), rule.MappingRuleID); err != nil {
		return err
	}
	return s.byClaim.Upsert(ctx, claimKey(rule.ClaimName, rule.ClaimValue), rule.MappingRuleID)
}

// Update replaces the rule's claim and name. The key of a rule never
// changes.
func (s *DBMappingRuleState) Update(ctx context.Context, rule *protocol.MappingRuleRecord) error {
	key := db.NewKey().Text(rule.MappingRuleID)
	old, ok, err := s.byID.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: s.byID.Name(), Key: key, Op: "update", Err: db.ErrKeyNotFound}
	}

	updated := *old
	updated.ClaimName = rule.ClaimName
	updated.ClaimValue = rule.ClaimValue
	updated.Name = rule.Name
	if err := s.byID.Update(ctx, key, &updated); err != nil {
		return err
	}

	if old.ClaimName != updated.ClaimName || old.ClaimValue != updated.ClaimValue {
		if err := s.byClaim.DeleteIfExists(ctx, claimKey(old.ClaimName, old.ClaimValue)); err != nil {
			return err
		}
	}
	return s.byClaim.Upsert(ctx, claimKey(updated.ClaimName, updated.ClaimValue), updated.MappingRuleID)
}

func (s *DBMappingRuleState) Delete(ctx context.Context, mappingRuleID string) error {
	key := db.NewKey().Text(mappingRuleID)
	rule, ok, err := s.byID.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: s.byID.Name(), Key: key, Op: "delete", Err: db.ErrKeyNotFound}
	}
	if err := s.byID.Delete(ctx, key); err != nil {
		return err
	}
	if err := s.byKey.DeleteIfExists(ctx, db.NewKey().Int64(rule.MappingRuleKey)); err != nil {
		return err
	}

	claim := claimKey(rule.ClaimName, rule.ClaimValue)
	owner, ok, err := s.byClaim.Get(ctx, claim)
	if err != nil || !ok || owner != mappingRuleID {
		return err
	}
	return s.byClaim.Delete(ctx, claim)
}
