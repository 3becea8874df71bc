package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

func TestMappingRuleState_ClaimIndexFollowsUpdates(t *testing.T) {
	ps, ctx := setupTestState(t)
	rules := ps.MappingRules

	require.NoError(t, rules.Create(ctx, &protocol.MappingRuleRecord{
		MappingRuleKey: 5, MappingRuleID: "mr", ClaimName: "dept", ClaimValue: "eng", Name: "Engineering",
	}))

	got, ok, err := rules.GetByClaim(ctx, "dept", "eng")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mr", got.MappingRuleID)

	require.NoError(t, rules.Update(ctx, &protocol.MappingRuleRecord{
		MappingRuleID: "mr", ClaimName: "dept", ClaimValue: "ops", Name: "Operations",
	}))

	_, ok, err = rules.GetByClaim(ctx, "dept", "eng")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err = rules.GetByKey(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ops", got.ClaimValue)
	assert.Equal(t, int64(5), got.MappingRuleKey)

	require.NoError(t, rules.Delete(ctx, "mr"))
	_, ok, err = rules.GetByClaim(ctx, "dept", "ops")
	require.NoError(t, err)
	assert.False(t, ok)

	err = rules.Delete(ctx, "mr")
	assert.True(t, db.IsInconsistencyError(err))
}

func TestMembershipState_DeleteAllRemovesBothDirections(t *testing.T) {
	ps, ctx := setupTestState(t)
	m := ps.Memberships

	require.NoError(t, m.InsertRelation(ctx, protocol.EntityTypeUser, "alice", protocol.EntityTypeGroup, "g1"))
	require.NoError(t, m.InsertRelation(ctx, protocol.EntityTypeUser, "bob", protocol.EntityTypeGroup, "g1"))
	require.NoError(t, m.InsertRelation(ctx, protocol.EntityTypeGroup, "g1", protocol.EntityTypeRole, "admin"))
	require.NoError(t, m.InsertRelation(ctx, protocol.EntityTypeUser, "alice", protocol.EntityTypeRole, "admin"))

	members, err := m.Members(ctx, protocol.EntityTypeGroup, "g1")
	require.NoError(t, err)
	assert.Equal(t, []Member{
		{EntityType: protocol.EntityTypeUser, EntityID: "alice"},
		{EntityType: protocol.EntityTypeUser, EntityID: "bob"},
	}, members)

	require.NoError(t, m.DeleteAll(ctx, protocol.EntityTypeGroup, "g1"))

	members, err = m.Members(ctx, protocol.EntityTypeGroup, "g1")
	require.NoError(t, err)
	assert.Empty(t, members)

	roles, err := m.Relations(ctx, protocol.EntityTypeGroup, "g1", protocol.EntityTypeRole)
	require.NoError(t, err)
	assert.Empty(t, roles)

	// Unrelated memberships survive.
	ok, err := m.HasRelation(ctx, protocol.EntityTypeUser, "alice", protocol.EntityTypeRole, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMembershipState_DuplicateAndMissing(t *testing.T) {
	ps, ctx := setupTestState(t)
	m := ps.Memberships

	require.NoError(t, m.InsertRelation(ctx, protocol.EntityTypeUser, "alice", protocol.EntityTypeTenant, "t1"))
	err := m.InsertRelation(ctx, protocol.EntityTypeUser, "alice", protocol.EntityTypeTenant, "t1")
	assert.ErrorIs(t, err, db.ErrKeyExists)

	err = m.DeleteRelation(ctx, protocol.EntityTypeUser, "bob", protocol.EntityTypeTenant, "t1")
	assert.ErrorIs(t, err, db.ErrKeyNotFound)
}

func TestRoleState_Lifecycle(t *testing.T) {
	ps, ctx := setupTestState(t)
	roles := ps.Roles

	require.NoError(t, roles.CreateRole(ctx, &protocol.RoleRecord{RoleKey: 1, RoleID: "admin", Name: "Admin", EntityID: "ignored"}))
	require.NoError(t, roles.UpdateRole(ctx, &protocol.RoleRecord{RoleID: "admin", Name: "Administrators", Description: "all access"}))

	got, ok, err := roles.GetRole(ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, &protocol.RoleRecord{RoleKey: 1, RoleID: "admin", Name: "Administrators", Description: "all access"}, got)

	require.NoError(t, roles.DeleteRole(ctx, "admin"))
	assert.True(t, db.IsInconsistencyError(roles.RequireRole(ctx, "admin")))
	assert.True(t, db.IsInconsistencyError(roles.UpdateRole(ctx, &protocol.RoleRecord{RoleID: "admin"})))
}

func TestAuthorizationState_OwnerIndex(t *testing.T) {
	ps, ctx := setupTestState(t)
	auths := ps.Authorizations

	require.NoError(t, auths.Create(ctx, 10, &protocol.AuthorizationRecord{OwnerID: "mr", OwnerType: protocol.EntityTypeMappingRule, ResourceType: "PROCESS_DEFINITION", ResourceID: "*"}))
	require.NoError(t, auths.Create(ctx, 11, &protocol.AuthorizationRecord{OwnerID: "mr", OwnerType: protocol.EntityTypeMappingRule, ResourceType: "USER_TASK", ResourceID: "*"}))
	require.NoError(t, auths.Create(ctx, 12, &protocol.AuthorizationRecord{OwnerID: "alice", OwnerType: protocol.EntityTypeUser, ResourceType: "USER_TASK", ResourceID: "*"}))

	owned, err := auths.ByOwner(ctx, protocol.EntityTypeMappingRule, "mr")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, int64(10), owned[0].AuthorizationKey)

	require.NoError(t, auths.Update(ctx, 11, &protocol.AuthorizationRecord{OwnerID: "alice", OwnerType: protocol.EntityTypeUser, ResourceType: "USER_TASK", ResourceID: "*"}))
	owned, err = auths.ByOwner(ctx, protocol.EntityTypeUser, "alice")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	require.NoError(t, auths.DeleteByOwner(ctx, protocol.EntityTypeUser, "alice"))
	_, ok, err := auths.Get(ctx, 12)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := auths.ByOwner(ctx, protocol.EntityTypeMappingRule, "mr")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
