package protocol

// EntityType identifies what kind of member is attached to a role, group or
// tenant, and what kind of owner an authorization belongs to.
type EntityType string

const (
	EntityTypeUser        EntityType = "USER"
	EntityTypeClient      EntityType = "CLIENT"
	EntityTypeGroup       EntityType = "GROUP"
	EntityTypeRole        EntityType = "ROLE"
	EntityTypeMappingRule EntityType = "MAPPING_RULE"
	EntityTypeTenant      EntityType = "TENANT"
)

// FormRecord describes one deployed version of a form.
type FormRecord struct {
	FormID        string `json:"form_id"`
	Version       int32  `json:"version"`
	VersionTag    string `json:"version_tag,omitempty"`
	FormKey       int64  `json:"form_key"`
	ResourceName  string `json:"resource_name,omitempty"`
	Resource      string `json:"resource,omitempty"`
	Checksum      string `json:"checksum,omitempty"`
	DeploymentKey int64  `json:"deployment_key,omitempty"`
	TenantID      string `json:"tenant_id"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

func (*FormRecord) ValueType() ValueType { return ValueTypeForm }

// MappingRuleRecord maps a token claim to an identity entity.
type MappingRuleRecord struct {
	MappingRuleKey int64  `json:"mapping_rule_key"`
	MappingRuleID  string `json:"mapping_rule_id"`
	ClaimName      string `json:"claim_name"`
	ClaimValue     string `json:"claim_value"`
	Name           string `json:"name,omitempty"`
}

func (*MappingRuleRecord) ValueType() ValueType { return ValueTypeMappingRule }

// RoleRecord is used for role lifecycle events as well as entity membership
// changes, in which case EntityID and EntityType name the member.
type RoleRecord struct {
	RoleKey     int64      `json:"role_key"`
	RoleID      string     `json:"role_id"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	EntityID    string     `json:"entity_id,omitempty"`
	EntityType  EntityType `json:"entity_type,omitempty"`
}

func (*RoleRecord) ValueType() ValueType { return ValueTypeRole }

// GroupRecord mirrors RoleRecord for groups.
type GroupRecord struct {
	GroupKey    int64      `json:"group_key"`
	GroupID     string     `json:"group_id"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	EntityID    string     `json:"entity_id,omitempty"`
	EntityType  EntityType `json:"entity_type,omitempty"`
}

func (*GroupRecord) ValueType() ValueType { return ValueTypeGroup }

// TenantRecord mirrors RoleRecord for tenants.
type TenantRecord struct {
	TenantKey   int64      `json:"tenant_key"`
	TenantID    string     `json:"tenant_id"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	EntityID    string     `json:"entity_id,omitempty"`
	EntityType  EntityType `json:"entity_type,omitempty"`
}

func (*TenantRecord) ValueType() ValueType { return ValueTypeTenant }

// AuthorizationRecord grants permissions on a resource to an owner.
type AuthorizationRecord struct {
	AuthorizationKey int64      `json:"authorization_key"`
	OwnerID          string     `json:"owner_id"`
	OwnerType        EntityType `json:"owner_type"`
	ResourceType     string     `json:"resource_type"`
	ResourceID       string     `json:"resource_id"`
	Permissions      []string   `json:"permissions,omitempty"`
}

func (*AuthorizationRecord) ValueType() ValueType { return ValueTypeAuthorization }
