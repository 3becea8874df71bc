package appliers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/protocol"
)

func form(key int64, version int32, tag string) *protocol.FormRecord {
	return &protocol.FormRecord{
		FormID:        "invoice",
		FormKey:       key,
		Version:       version,
		VersionTag:    tag,
		DeploymentKey: 1000 + key,
		TenantID:      protocol.DefaultTenantID,
	}
}

func TestForm_VersionsSurviveDeletion(t *testing.T) {
	f := setupAppliers(t)

	f.apply(t, 1, protocol.FormCreated, form(1, 1, "v1.0"))
	f.apply(t, 2, protocol.FormCreated, form(2, 2, "v2.0"))

	latest, ok, err := f.ps.Forms.FindLatestByID(f.ctx, "invoice", protocol.DefaultTenantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), latest.FormKey)

	f.apply(t, 2, protocol.FormDeleted, form(2, 2, "v2.0"))

	latest, ok, err = f.ps.Forms.FindLatestByID(f.ctx, "invoice", protocol.DefaultTenantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), latest.FormKey)

	_, ok, err = f.ps.Forms.FindByIDAndVersionTag(f.ctx, "invoice", "v2.0", protocol.DefaultTenantID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = f.ps.Forms.FindByIDAndDeploymentKey(f.ctx, "invoice", 1002, protocol.DefaultTenantID)
	require.NoError(t, err)
	assert.False(t, ok)

	f.apply(t, 1, protocol.FormDeleted, form(1, 1, "v1.0"))
	_, ok, err = f.ps.Forms.FindLatestByID(f.ctx, "invoice", protocol.DefaultTenantID)
	require.NoError(t, err)
	assert.False(t, ok)

	next, err := f.ps.Forms.NextVersion(f.ctx, "invoice", protocol.DefaultTenantID)
	require.NoError(t, err)
	assert.Equal(t, int32(3), next)
}

func TestForm_FirstVersionSkipsSecondaryIndexes(t *testing.T) {
	f := setupAppliers(t)
	f.applyVersion(t, 1, protocol.FormCreated, form(1, 1, "v1.0"), 1)

	_, ok, err := f.ps.Forms.FindByIDAndVersionTag(f.ctx, "invoice", "v1.0", protocol.DefaultTenantID)
	require.NoError(t, err)
	assert.False(t, ok)

	byKey, ok, err := f.ps.Forms.FindByKey(f.ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(1), byKey.Version)
}

func TestForm_VersionTagLastWriteWins(t *testing.T) {
	f := setupAppliers(t)
	f.apply(t, 1, protocol.FormCreated, form(1, 1, "stable"))
	f.apply(t, 2, protocol.FormCreated, form(2, 2, "stable"))

	tagged, ok, err := f.ps.Forms.FindByIDAndVersionTag(f.ctx, "invoice", "stable", protocol.DefaultTenantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), tagged.FormKey)

	next, err := f.ps.Forms.NextVersion(f.ctx, "invoice", protocol.DefaultTenantID)
	require.NoError(t, err)
	assert.Equal(t, int32(3), next)
}

func TestRole_EntityLifecycle(t *testing.T) {
	f := setupAppliers(t)

	f.apply(t, 1, protocol.RoleCreated, &protocol.RoleRecord{RoleID: "admin", Name: "Admin"})
	f.apply(t, 1, protocol.RoleEntityAdded, &protocol.RoleRecord{RoleID: "admin", EntityID: "alice", EntityType: protocol.EntityTypeUser})
	f.apply(t, 1, protocol.RoleEntityAdded, &protocol.RoleRecord{RoleID: "admin", EntityID: "ops", EntityType: protocol.EntityTypeGroup})

	members, err := f.ps.Memberships.Members(f.ctx, protocol.EntityTypeRole, "admin")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	f.apply(t, 1, protocol.RoleEntityRemoved, &protocol.RoleRecord{RoleID: "admin", EntityID: "alice", EntityType: protocol.EntityTypeUser})
	roles, err := f.ps.Memberships.Relations(f.ctx, protocol.EntityTypeUser, "alice", protocol.EntityTypeRole)
	require.NoError(t, err)
	assert.Empty(t, roles)

	f.apply(t, 1, protocol.RoleUpdated, &protocol.RoleRecord{RoleID: "admin", Name: "Administrators"})
	role, ok, err := f.ps.Roles.GetRole(f.ctx, "admin")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Administrators", role.Name)

	f.apply(t, 1, protocol.RoleDeleted, &protocol.RoleRecord{RoleID: "admin"})
	members, err = f.ps.Memberships.Members(f.ctx, protocol.EntityTypeRole, "admin")
	require.NoError(t, err)
	assert.Empty(t, members)
	groupRoles, err := f.ps.Memberships.Relations(f.ctx, protocol.EntityTypeGroup, "ops", protocol.EntityTypeRole)
	require.NoError(t, err)
	assert.Empty(t, groupRoles)
}

func TestMappingRule_DeleteDetachesEverything(t *testing.T) {
	f := setupAppliers(t)
	rule := &protocol.MappingRuleRecord{MappingRuleKey: 3, MappingRuleID: "eng", ClaimName: "dept", ClaimValue: "engineering", Name: "Engineering"}

	f.apply(t, 3, protocol.MappingRuleCreated, rule)
	f.apply(t, 1, protocol.TenantCreated, &protocol.TenantRecord{TenantID: "acme", Name: "Acme"})
	f.apply(t, 1, protocol.TenantEntityAdded, &protocol.TenantRecord{TenantID: "acme", EntityID: "eng", EntityType: protocol.EntityTypeMappingRule})
	f.apply(t, 50, protocol.AuthorizationCreated, &protocol.AuthorizationRecord{OwnerID: "eng", OwnerType: protocol.EntityTypeMappingRule, ResourceType: "PROCESS_DEFINITION"})

	f.apply(t, 3, protocol.MappingRuleDeleted, rule)

	_, ok, err := f.ps.MappingRules.Get(f.ctx, "eng")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = f.ps.MappingRules.GetByClaim(f.ctx, "dept", "engineering")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := f.ps.Memberships.Members(f.ctx, protocol.EntityTypeTenant, "acme")
	require.NoError(t, err)
	assert.Empty(t, members)

	owned, err := f.ps.Authorizations.ByOwner(f.ctx, protocol.EntityTypeMappingRule, "eng")
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestGroup_DuplicateMemberIsInconsistent(t *testing.T) {
	f := setupAppliers(t)
	f.apply(t, 1, protocol.GroupCreated, &protocol.GroupRecord{GroupID: "ops", Name: "Ops"})
	member := &protocol.GroupRecord{GroupID: "ops", EntityID: "alice", EntityType: protocol.EntityTypeUser}
	f.apply(t, 1, protocol.GroupEntityAdded, member)

	err := f.ea.ApplyState(f.ctx, 1, protocol.GroupEntityAdded, member, 1)
	require.Error(t, err)
}
