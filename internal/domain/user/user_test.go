package user

import "testing"

func TestRoleAtLeast(t *testing.T) {
	cases := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleAdmin, RoleTrainer, true},
		{RoleSupervisor, RoleTrainer, true},
		{RoleTrainer, RoleTrainer, true},
		{RoleTrainee, RoleTrainer, false},
		{Role("GUEST"), RoleTrainee, false},
	}
	for _, tc := range cases {
		if got := tc.role.AtLeast(tc.min); got != tc.want {
			t.Fatalf("%s.AtLeast(%s): want=%v got=%v", tc.role, tc.min, tc.want, got)
		}
	}
}

func TestParseRole(t *testing.T) {
	if got := ParseRole(" trainer "); got != RoleTrainer {
		t.Fatalf("want TRAINER got %q", got)
	}
	if ParseRole("root").Valid() {
		t.Fatalf("unknown role must be invalid")
	}
}
