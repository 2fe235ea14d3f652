package notify

import (
	"testing"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/auth"
)

func TestRoleGroupsSuperAdminCoversAdminGroup(t *testing.T) {
	got := roleGroups(auth.RoleSuperAdmin, true)
	want := map[string]bool{auth.RoleSuperAdmin: false, auth.RoleAdmin: false}
	for _, r := range got {
		if _, ok := want[r]; !ok {
			t.Fatalf("unexpected role group %q in %v", r, got)
		}
		want[r] = true
	}
	for r, seen := range want {
		if !seen {
			t.Fatalf("role group %q missing: super_admin must also see %q group rows", r, auth.RoleAdmin)
		}
	}
}

func TestRoleGroupsPlainRoles(t *testing.T) {
	if got := roleGroups(auth.RoleAdmin, true); len(got) != 1 || got[0] != auth.RoleAdmin {
		t.Fatalf("admin groups = %v, want [admin]", got)
	}
	if got := roleGroups(auth.RoleBuyer, false); len(got) != 1 || got[0] != auth.RoleBuyer {
		t.Fatalf("buyer groups = %v, want [buyer]", got)
	}
}
