package state

import (
	"time"

	"github.com/roach88/eventstate/internal/db"
)

// Options configures the partitions that are not fully determined by the
// event log.
type Options struct {
	// UsageBucketDuration is the width of usage metric buckets.
	// Zero means DefaultUsageBucketDuration.
	UsageBucketDuration time.Duration
}

// ProcessingState holds every partition over one store. It is built once
// and handed to the appliers; it owns no data itself.
type ProcessingState struct {
	DB    *db.DB
	Clock *StreamClock

	Forms            MutableFormState
	MappingRules     MutableMappingRuleState
	Memberships      MutableMembershipState
	Roles            MutableRoleState
	Groups           MutableGroupState
	Tenants          MutableTenantState
	Authorizations   MutableAuthorizationState
	ElementInstances MutableElementInstanceState
	UserTasks        MutableUserTaskState
	Incidents        MutableIncidentState
	Jobs             MutableJobState
	ClockState       MutableClockState
	UsageMetrics     MutableUsageMetricState
	GlobalListeners  MutableGlobalListenersState
	Variables        MutableVariableState
}

// NewProcessingState builds every partition over d.
func NewProcessingState(d *db.DB, opts Options) *ProcessingState {
	clockState := NewClockState(d)
	clock := NewStreamClock(clockState)
	return &ProcessingState{
		DB:    d,
		Clock: clock,

		Forms:            NewFormState(d),
		MappingRules:     NewMappingRuleState(d),
		Memberships:      NewMembershipState(d),
		Roles:            NewRoleState(d),
		Groups:           NewGroupState(d),
		Tenants:          NewTenantState(d),
		Authorizations:   NewAuthorizationState(d),
		ElementInstances: NewElementInstanceState(d),
		UserTasks:        NewUserTaskState(d),
		Incidents:        NewIncidentState(d),
		Jobs:             NewJobState(d),
		ClockState:       clockState,
		UsageMetrics:     NewUsageMetricState(d, clock, opts.UsageBucketDuration),
		GlobalListeners:  NewGlobalListenersState(d),
		Variables:        NewVariableState(d),
	}
}
