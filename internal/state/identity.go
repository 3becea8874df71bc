package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// entityDirectory is an id-keyed store shared by roles, groups and
// tenants. Memberships are kept by the Membership partition.
type entityDirectory[R any] struct {
	byID *db.ColumnFamily[R]
}

func (d entityDirectory[R]) get(ctx context.Context, id string) (R, bool, error) {
	return d.byID.Get(ctx, db.NewKey().Text(id))
}

func (d entityDirectory[R]) create(ctx context.Context, id string, r R) error {
	return d.byID.Insert(ctx, db.NewKey().Text(id), r)
}

func (d entityDirectory[R]) update(ctx context.Context, id string, merge func(stored R) R) error {
	key := db.NewKey().Text(id)
	stored, ok, err := d.byID.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: d.byID.Name(), Key: key, Op: "update", Err: db.ErrKeyNotFound}
	}
	return d.byID.Update(ctx, key, merge(stored))
}

func (d entityDirectory[R]) delete(ctx context.Context, id string) error {
	return d.byID.Delete(ctx, db.NewKey().Text(id))
}

func (d entityDirectory[R]) mustExist(ctx context.Context, id string) error {
	key := db.NewKey().Text(id)
	ok, err := d.byID.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &db.InconsistencyError{ColumnFamily: d.byID.Name(), Key: key, Op: "get", Err: db.ErrKeyNotFound}
	}
	return nil
}

// RoleState reads roles by ID.
type RoleState interface {
	GetRole(ctx context.Context, roleID string) (*protocol.RoleRecord, bool, error)
}

// MutableRoleState is the role state the identity appliers write.
type MutableRoleState interface {
	RoleState
	CreateRole(ctx context.Context, role *protocol.RoleRecord) error
	UpdateRole(ctx context.Context, role *protocol.RoleRecord) error
	DeleteRole(ctx context.Context, roleID string) error
	RequireRole(ctx context.Context, roleID string) error
}

// DBRoleState stores roles by role ID.
type DBRoleState struct {
	dir entityDirectory[*protocol.RoleRecord]
}

// NewRoleState returns the role partition of d.
func NewRoleState(d *db.DB) *DBRoleState {
	return &DBRoleState{dir: entityDirectory[*protocol.RoleRecord]{
		byID: db.NewColumnFamily[*protocol.RoleRecord](d, cfRoleByID, "ROLES"),
	}}
}

func (s *DBRoleState) GetRole(ctx context.Context, roleID string) (*protocol.RoleRecord, bool, error) {
	return s.dir.get(ctx, roleID)
}

func (s *DBRoleState) CreateRole(ctx context.Context, role *protocol.RoleRecord) error {
	stored := &protocol.RoleRecord{RoleKey: role.RoleKey, RoleID: role.RoleID, Name: role.Name, Description: role.Description}
	return s.dir.create(ctx, role.RoleID, stored)
}

func (s *DBRoleState) UpdateRole(ctx context.Context, role *protocol.RoleRecord) error {
	return s.dir.update(ctx, role.RoleID, func(stored *protocol.RoleRecord) *protocol.RoleRecord {
		stored.Name = role.Name
		stored.Description = role.Description
		return stored
	})
}

func (s *DBRoleState) DeleteRole(ctx context.Context, roleID string) error {
	return s.dir.delete(ctx, roleID)
}

// RequireRole fails with an inconsistency if the role does not exist.
func (s *DBRoleState) RequireRole(ctx context.Context, roleID string) error {
	return s.dir.mustExist(ctx, roleID)
}

// GroupState reads groups by ID.
type GroupState interface {
	GetGroup(ctx context.Context, groupID string) (*protocol.GroupRecord, bool, error)
}

// MutableGroupState is the group state the identity appliers write.
type MutableGroupState interface {
	GroupState
	CreateGroup(ctx context.Context, group *protocol.GroupRecord) error
	UpdateGroup(ctx context.Context, group *protocol.GroupRecord) error
	DeleteGroup(ctx context.Context, groupID string) error
	RequireGroup(ctx context.Context, groupID string) error
}

// DBGroupState stores groups by group ID.
type DBGroupState struct {
	dir entityDirectory[*protocol.GroupRecord]
}

// NewGroupState returns the group partition of d.
func NewGroupState(d *db.DB) *DBGroupState {
	return &DBGroupState{dir: entityDirectory[*protocol.GroupRecord]{
		byID: db.NewColumnFamily[*protocol.GroupRecord](d, cfGroupByID, "GROUPS"),
	}}
}

func (s *DBGroupState) GetGroup(ctx context.Context, groupID string) (*protocol.GroupRecord, bool, error) {
	return s.dir.get(ctx, groupID)
}

func (s *DBGroupState) CreateGroup(ctx context.Context, group *protocol.GroupRecord) error {
	stored := &protocol.GroupRecord{GroupKey: group.GroupKey, GroupID: group.GroupID, Name: group.Name, Description: group.Description}
	return s.dir.create(ctx, group.GroupID, stored)
}

func (s *DBGroupState) UpdateGroup(ctx context.Context, group *protocol.GroupRecord) error {
	return s.dir.update(ctx, group.GroupID, func(stored *protocol.GroupRecord) *protocol.GroupRecord {
		stored.Name = group.Name
		stored.Description = group.Description
		return stored
	})
}

func (s *DBGroupState) DeleteGroup(ctx context.Context, groupID string) error {
	return s.dir.delete(ctx, groupID)
}

func (s *DBGroupState) RequireGroup(ctx context.Context, groupID string) error {
	return s.dir.mustExist(ctx, groupID)
}

// TenantState reads tenants by ID.
type TenantState interface {
	GetTenant(ctx context.Context, tenantID string) (*protocol.TenantRecord, bool, error)
}

// MutableTenantState is the tenant state the identity appliers write.
type MutableTenantState interface {
	TenantState
	CreateTenant(ctx context.Context, tenant *protocol.TenantRecord) error
	UpdateTenant(ctx context.Context, tenant *protocol.TenantRecord) error
	DeleteTenant(ctx context.Context, tenantID string) error
	RequireTenant(ctx context.Context, tenantID string) error
}

// DBTenantState stores tenants by tenant ID.
type DBTenantState struct {
	dir entityDirectory[*protocol.TenantRecord]
}

// NewTenantState returns the tenant partition of d.
func NewTenantState(d *db.DB) *DBTenantState {
	return &DBTenantState{dir: entityDirectory[*protocol.TenantRecord]{
		byID: db.NewColumnFamily[*protocol.TenantRecord](d, cfTenantByID, "TENANTS"),
	}}
}

func (s *DBTenantState) GetTenant(ctx context.Context, tenantID string) (*protocol.TenantRecord, bool, error) {
	return s.dir.get(ctx, tenantID)
}

func (s *DBTenantState) CreateTenant(ctx context.Context, tenant *protocol.TenantRecord) error {
	stored := &protocol.TenantRecord{TenantKey: tenant.TenantKey, TenantID: tenant.TenantID, Name: tenant.Name, Description: tenant.Description}
	return s.dir.create(ctx, tenant.TenantID, stored)
}

func (s *DBTenantState) UpdateTenant(ctx context.Context, tenant *protocol.TenantRecord) error {
	return s.dir.update(ctx, tenant.TenantID, func(stored *protocol.TenantRecord) *protocol.TenantRecord {
		stored.Name = tenant.Name
		stored.Description = tenant.Description
		return stored
	})
}

func (s *DBTenantState) DeleteTenant(ctx context.Context, tenantID string) error {
	return s.dir.delete(ctx, tenantID)
}

func (s *DBTenantState) RequireTenant(ctx context.Context, tenantID string) error {
	return s.dir.mustExist(ctx, tenantID)
}
