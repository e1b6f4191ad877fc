package rbac

// Role names. Keep these stable; they are part of auth contracts and
// are stored verbatim in the user directory and in token claims.
const (
	RoleAdministrator = "administrator"
	RoleContributor   = "contributor"
	RoleViewer        = "viewer"
)

// Permission grants a set of actions on a resource.
//
// Resource may be "*" (any resource) or a prefix ending in "*"
// (e.g. "reviews*" matches "reviews" and "reviews-archive").
// Actions may contain "*" to grant every action on the resource.
type Permission struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

// Role is an immutable named bundle of permissions.
type Role struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// RoleTable maps role names to their permission sets.
// Injected into the Evaluator at construction so tests can supply
// alternate tables; there is no module-level mutable state.
type RoleTable map[string][]Permission

// DefaultRoleTable returns the platform's fixed role definitions.
func DefaultRoleTable() RoleTable {
	return RoleTable{
		RoleAdministrator: {
			{Resource: "*", Actions: []string{"*"}},
		},
		RoleContributor: {
			{Resource: "projects", Actions: []string{"read", "create", "update"}},
			{Resource: "reviews", Actions: []string{"read", "create", "update"}},
			{Resource: "comments", Actions: []string{"read", "create", "update", "delete"}},
		},
		RoleViewer: {
			{Resource: "projects", Actions: []string{"read"}},
			{Resource: "reviews", Actions: []string{"read"}},
			{Resource: "comments", Actions: []string{"read"}},
		},
	}
}
