package rbac

import (
	"sort"
	"strings"
)

// Evaluator decides access from role definitions. It is a pure component:
// no I/O, no clock, safe for concurrent use.
type Evaluator struct {
	table RoleTable
}

// NewEvaluator builds an evaluator over the given role table.
// A nil table is treated as empty (every check denies).
func NewEvaluator(table RoleTable) *Evaluator {
	if table == nil {
		table = RoleTable{}
	}
	return &Evaluator{table: table}
}

// RolesFor resolves role names against the table. Unknown names resolve to
// roles with zero permissions: they deny everything but are not an error.
func (e *Evaluator) RolesFor(names []string) []Role {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, Role{Name: name, Permissions: e.table[name]})
	}
	return roles
}

// HasPermission reports whether any role grants the (resource, action) pair.
// First match wins; there is no explicit-deny concept, so absence of a grant
// is the only denial path. An empty role list always denies.
func (e *Evaluator) HasPermission(roles []Role, resource, action string) bool {
	for _, role := range roles {
		for _, perm := range role.Permissions {
			if !resourceMatches(perm.Resource, resource) {
				continue
			}
			if actionAllowed(perm.Actions, action) {
				return true
			}
		}
	}
	return false
}

// AllPermissions flattens roles into sorted "resource:action" strings for
// embedding into token claims. A full-wildcard permission collapses to the
// single sentinel "*:*" rather than enumerating concrete pairs.
func (e *Evaluator) AllPermissions(roles []Role) []string {
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, perm := range role.Permissions {
			for _, action := range perm.Actions {
				if perm.Resource == "*" && action == "*" {
					return []string{"*:*"}
				}
				set[perm.Resource+":"+action] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RequiredResult reports the outcome of a batch permission pre-check.
type RequiredResult struct {
	Valid   bool
	Missing []string
}

// ValidateRequired checks a batch of "resource:action" requirements,
// returning the ones the roles do not satisfy. Malformed entries count
// as missing.
func (e *Evaluator) ValidateRequired(roles []Role, required []string) RequiredResult {
	var missing []string
	for _, req := range required {
		resource, action, ok := strings.Cut(req, ":")
		if !ok || resource == "" || action == "" {
			missing = append(missing, req)
			continue
		}
		if !e.HasPermission(roles, resource, action) {
			missing = append(missing, req)
		}
	}
	return RequiredResult{Valid: len(missing) == 0, Missing: missing}
}

func resourceMatches(pattern, resource string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == resource {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(resource, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

func actionAllowed(actions []string, action string) bool {
	for _, a := range actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}
