package state

import "github.com/roach88/eventstate/internal/db"

// Column family ids. Each partition owns its ids exclusively. Ids are part
// of the persisted layout: never renumber, only append.
const (
	cfFormByKey db.ColumnFamilyID = iota + 1
	cfFormVersionByID
	cfFormLatestByID
	cfFormNextVersion
	cfFormByDeploymentKey
	cfFormByVersionTag

	cfMappingRuleByKey
	cfMappingRuleByID
	cfMappingRuleByClaim

	cfRoleByID
	cfGroupByID
	cfTenantByID

	cfMembershipByEntity
	cfMembershipByRelation

	cfAuthorizationByKey
	cfAuthorizationByOwner

	cfElementInstanceByKey
	cfElementInstanceChildren
	cfProcessInstanceByDefinitionKey
	cfTakenSequenceFlows

	cfUserTaskByKey
	cfUserTaskLifecycle
	cfUserTaskIntermediate
	cfUserTaskInitialAssignee
	cfUserTaskRequestMetadata
	cfUserTaskAssigneeAudit

	cfIncidentByKey
	cfIncidentByJobKey
	cfIncidentByElementInstance

	cfJobByKey
	cfJobStates
	cfJobActivatable

	cfClock

	cfUsageMetricBucket

	cfGlobalListenersCurrent
	cfGlobalListenersPinned
	cfGlobalListenersPinReferences
	cfGlobalListenersEntityPin

	cfVariables
	cfVariableDocuments
)

// singleton is the key of column families holding exactly one value.
var singleton = db.NewKey().Text("singleton")
