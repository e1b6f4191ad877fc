package rbac

import (
	"reflect"
	"testing"
)

func defaultRoles(t *testing.T, names ...string) []Role {
	t.Helper()
	return NewEvaluator(DefaultRoleTable()).RolesFor(names)
}

func TestHasPermission_AdministratorGrantsEverything(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	roles := e.RolesFor([]string{RoleAdministrator})

	cases := []struct{ resource, action string }{
		{"projects", "read"},
		{"projects", "delete"},
		{"settings", "update"},
		{"anything-at-all", "purge"},
	}
	for _, tc := range cases {
		if !e.HasPermission(roles, tc.resource, tc.action) {
			t.Fatalf("administrator denied %s:%s", tc.resource, tc.action)
		}
	}
}

func TestHasPermission_ContributorBoundaries(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	roles := e.RolesFor([]string{RoleContributor})

	if !e.HasPermission(roles, "projects", "read") {
		t.Fatalf("contributor should read projects")
	}
	if !e.HasPermission(roles, "projects", "update") {
		t.Fatalf("contributor should update projects")
	}
	if e.HasPermission(roles, "projects", "delete") {
		t.Fatalf("contributor must not delete projects")
	}
	if e.HasPermission(roles, "settings", "read") {
		t.Fatalf("contributor must not touch settings")
	}
}

func TestHasPermission_EmptyRolesAlwaysDeny(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	if e.HasPermission(nil, "projects", "read") {
		t.Fatalf("nil roles granted access")
	}
	if e.HasPermission([]Role{}, "projects", "read") {
		t.Fatalf("empty roles granted access")
	}
}

func TestHasPermission_UnknownRoleHasZeroPermissions(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	roles := e.RolesFor([]string{"ghost_role"})
	if len(roles) != 1 {
		t.Fatalf("expected unknown role to be resolved, got %d roles", len(roles))
	}
	if e.HasPermission(roles, "projects", "read") {
		t.Fatalf("unknown role granted access")
	}
}

func TestHasPermission_PrefixWildcardResource(t *testing.T) {
	table := RoleTable{
		"archivist": {
			{Resource: "reviews*", Actions: []string{"read"}},
		},
	}
	e := NewEvaluator(table)
	roles := e.RolesFor([]string{"archivist"})

	if !e.HasPermission(roles, "reviews", "read") {
		t.Fatalf("prefix wildcard should match the stem itself")
	}
	if !e.HasPermission(roles, "reviews-archive", "read") {
		t.Fatalf("prefix wildcard should match extensions of the stem")
	}
	if e.HasPermission(roles, "review", "read") {
		t.Fatalf("prefix wildcard must not match shorter names")
	}
	if e.HasPermission(roles, "reviews-archive", "delete") {
		t.Fatalf("action still bounded by the permission's action set")
	}
}

func TestHasPermission_WildcardActionOnExactResource(t *testing.T) {
	table := RoleTable{
		"comment_mod": {
			{Resource: "comments", Actions: []string{"*"}},
		},
	}
	e := NewEvaluator(table)
	roles := e.RolesFor([]string{"comment_mod"})

	if !e.HasPermission(roles, "comments", "delete") {
		t.Fatalf("wildcard action should allow delete")
	}
	if e.HasPermission(roles, "reviews", "delete") {
		t.Fatalf("wildcard action must not leak across resources")
	}
}

func TestHasPermission_FirstMatchAcrossMultipleRoles(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	roles := e.RolesFor([]string{RoleViewer, RoleContributor})
	// Viewer alone cannot create, but contributor later in the list can.
	if !e.HasPermission(roles, "reviews", "create") {
		t.Fatalf("expected grant from second role in the list")
	}
}

func TestAllPermissions_AdminCollapsesToSentinel(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	got := e.AllPermissions(e.RolesFor([]string{RoleAdministrator, RoleViewer}))
	if !reflect.DeepEqual(got, []string{"*:*"}) {
		t.Fatalf("expected [*:*], got %v", got)
	}
}

func TestAllPermissions_FlattensAndSorts(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	got := e.AllPermissions(e.RolesFor([]string{RoleViewer}))
	want := []string{"comments:read", "projects:read", "reviews:read"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAllPermissions_DeduplicatesAcrossRoles(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	got := e.AllPermissions(e.RolesFor([]string{RoleViewer, RoleViewer}))
	want := []string{"comments:read", "projects:read", "reviews:read"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidateRequired(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	roles := e.RolesFor([]string{RoleContributor})

	res := e.ValidateRequired(roles, []string{"projects:read", "reviews:create"})
	if !res.Valid || len(res.Missing) != 0 {
		t.Fatalf("expected valid, got %+v", res)
	}

	res = e.ValidateRequired(roles, []string{"projects:read", "projects:delete", "settings:update"})
	if res.Valid {
		t.Fatalf("expected invalid")
	}
	want := []string{"projects:delete", "settings:update"}
	if !reflect.DeepEqual(res.Missing, want) {
		t.Fatalf("expected missing %v, got %v", want, res.Missing)
	}
}

func TestValidateRequired_MalformedEntryCountsAsMissing(t *testing.T) {
	e := NewEvaluator(DefaultRoleTable())
	roles := defaultRoles(t, RoleAdministrator)

	res := e.ValidateRequired(roles, []string{"projectsread", ":", "projects:read"})
	if res.Valid {
		t.Fatalf("expected invalid for malformed entries")
	}
	if len(res.Missing) != 2 {
		t.Fatalf("expected 2 missing, got %v", res.Missing)
	}
}
