package appliers

import (
	"context"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type mappingRuleCreatedApplier struct {
	mappingRules state.MutableMappingRuleState
}

func (a *mappingRuleCreatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	rule, err := recordAs[*protocol.MappingRuleRecord](value)
	if err != nil {
		return err
	}
	return a.mappingRules.Create(ctx, rule)
}

type mappingRuleUpdatedApplier struct {
	mappingRules state.MutableMappingRuleState
}

func (a *mappingRuleUpdatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	rule, err := recordAs[*protocol.MappingRuleRecord](value)
	if err != nil {
		return err
	}
	return a.mappingRules.Update(ctx, rule)
}

// mappingRuleDeletedApplier detaches the rule from every role, group and
// tenant and drops the authorizations it owns before deleting it.
type mappingRuleDeletedApplier struct {
	mappingRules   state.MutableMappingRuleState
	memberships    state.MutableMembershipState
	authorizations state.MutableAuthorizationState
}

func (a *mappingRuleDeletedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	rule, err := recordAs[*protocol.MappingRuleRecord](value)
	if err != nil {
		return err
	}
	if err := a.memberships.DeleteAll(ctx, protocol.EntityTypeMappingRule, rule.MappingRuleID); err != nil {
		return err
	}
	if err := a.authorizations.DeleteByOwner(ctx, protocol.EntityTypeMappingRule, rule.MappingRuleID); err != nil {
		return err
	}
	return a.mappingRules.Delete(ctx, rule.MappingRuleID)
}

type roleCreatedApplier struct {
	roles state.MutableRoleState
}

func (a *roleCreatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	role, err := recordAs[*protocol.RoleRecord](value)
	if err != nil {
		return err
	}
	return a.roles.CreateRole(ctx, role)
}

type roleUpdatedApplier struct {
	roles state.MutableRoleState
}

func (a *roleUpdatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	role, err := recordAs[*protocol.RoleRecord](value)
	if err != nil {
		return err
	}
	return a.roles.UpdateRole(ctx, role)
}

type roleEntityAddedApplier struct {
	roles       state.MutableRoleState
	memberships state.MutableMembershipState
}

func (a *roleEntityAddedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	role, err := recordAs[*protocol.RoleRecord](value)
	if err != nil {
		return err
	}
	if err := a.roles.RequireRole(ctx, role.RoleID); err != nil {
		return err
	}
	return a.memberships.InsertRelation(ctx, role.EntityType, role.EntityID, protocol.EntityTypeRole, role.RoleID)
}

type roleEntityRemovedApplier struct {
	memberships state.MutableMembershipState
}

func (a *roleEntityRemovedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	role, err := recordAs[*protocol.RoleRecord](value)
	if err != nil {
		return err
	}
	return a.memberships.DeleteRelation(ctx, role.EntityType, role.EntityID, protocol.EntityTypeRole, role.RoleID)
}

type roleDeletedApplier struct {
	roles       state.MutableRoleState
	memberships state.MutableMembershipState
}

func (a *roleDeletedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	role, err := recordAs[*protocol.RoleRecord](value)
	if err != nil {
		return err
	}
	if err := a.roles.DeleteRole(ctx, role.RoleID); err != nil {
		return err
	}
	return a.memberships.DeleteAll(ctx, protocol.EntityTypeRole, role.RoleID)
}

type groupCreatedApplier struct {
	groups state.MutableGroupState
}

func (a *groupCreatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	group, err := recordAs[*protocol.GroupRecord](value)
	if err != nil {
		return err
	}
	return a.groups.CreateGroup(ctx, group)
}

type groupUpdatedApplier struct {
	groups state.MutableGroupState
}

func (a *groupUpdatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	group, err := recordAs[*protocol.GroupRecord](value)
	if err != nil {
		return err
	}
	return a.groups.UpdateGroup(ctx, group)
}

type groupEntityAddedApplier struct {
	groups      state.MutableGroupState
	memberships state.MutableMembershipState
}

func (a *groupEntityAddedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	group, err := recordAs[*protocol.GroupRecord](value)
	if err != nil {
		return err
	}
	if err := a.groups.RequireGroup(ctx, group.GroupID); err != nil {
		return err
	}
	return a.memberships.InsertRelation(ctx, group.EntityType, group.EntityID, protocol.EntityTypeGroup, group.GroupID)
}

type groupEntityRemovedApplier struct {
	memberships state.MutableMembershipState
}

func (a *groupEntityRemovedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	group, err := recordAs[*protocol.GroupRecord](value)
	if err != nil {
		return err
	}
	return a.memberships.DeleteRelation(ctx, group.EntityType, group.EntityID, protocol.EntityTypeGroup, group.GroupID)
}

type groupDeletedApplier struct {
	groups      state.MutableGroupState
	memberships state.MutableMembershipState
}

func (a *groupDeletedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	group, err := recordAs[*protocol.GroupRecord](value)
	if err != nil {
		return err
	}
	if err := a.groups.DeleteGroup(ctx, group.GroupID); err != nil {
		return err
	}
	return a.memberships.DeleteAll(ctx, protocol.EntityTypeGroup, group.GroupID)
}

type tenantCreatedApplier struct {
	tenants state.MutableTenantState
}

func (a *tenantCreatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	tenant, err := recordAs[*protocol.TenantRecord](value)
	if err != nil {
		return err
	}
	return a.tenants.CreateTenant(ctx, tenant)
}

type tenantUpdatedApplier struct {
	tenants state.MutableTenantState
}

func (a *tenantUpdatedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	tenant, err := recordAs[*protocol.TenantRecord](value)
	if err != nil {
		return err
	}
	return a.tenants.UpdateTenant(ctx, tenant)
}

type tenantEntityAddedApplier struct {
	tenants     state.MutableTenantState
	memberships state.MutableMembershipState
}

func (a *tenantEntityAddedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	tenant, err := recordAs[*protocol.TenantRecord](value)
	if err != nil {
		return err
	}
	if err := a.tenants.RequireTenant(ctx, tenant.TenantID); err != nil {
		return err
	}
	return a.memberships.InsertRelation(ctx, tenant.EntityType, tenant.EntityID, protocol.EntityTypeTenant, tenant.TenantID)
}

type tenantEntityRemovedApplier struct {
	memberships state.MutableMembershipState
}

func (a *tenantEntityRemovedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	tenant, err := recordAs[*protocol.TenantRecord](value)
	if err != nil {
		return err
	}
	return a.memberships.DeleteRelation(ctx, tenant.EntityType, tenant.EntityID, protocol.EntityTypeTenant, tenant.TenantID)
}

type tenantDeletedApplier struct {
	tenants     state.MutableTenantState
	memberships state.MutableMembershipState
}

func (a *tenantDeletedApplier) ApplyState(ctx context.Context, _ int64, value protocol.RecordValue) error {
	tenant, err := recordAs[*protocol.TenantRecord](value)
	if err != nil {
		return err
	}
	if err := a.tenants.DeleteTenant(ctx, tenant.TenantID); err != nil {
		return err
	}
	return a.memberships.DeleteAll(ctx, protocol.EntityTypeTenant, tenant.TenantID)
}

type authorizationCreatedApplier struct {
	authorizations state.MutableAuthorizationState
}

func (a *authorizationCreatedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	auth, err := recordAs[*protocol.AuthorizationRecord](value)
	if err != nil {
		return err
	}
	return a.authorizations.Create(ctx, key, auth)
}

type authorizationUpdatedApplier struct {
	authorizations state.MutableAuthorizationState
}

func (a *authorizationUpdatedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	auth, err := recordAs[*protocol.AuthorizationRecord](value)
	if err != nil {
		return err
	}
	return a.authorizations.Update(ctx, key, auth)
}

type authorizationDeletedApplier struct {
	authorizations state.MutableAuthorizationState
}

func (a *authorizationDeletedApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return a.authorizations.Delete(ctx, key)
}
