package account

import "testing"

func TestRoute(t *testing.T) {
	authed := func(role string, approved bool) SessionState {
		return SessionState{
			Account:         &Account{ID: "id", Email: "x@test.test", Role: role},
			IsAuthenticated: true,
			IsApproved:      approved,
		}
	}

	tests := []struct {
		name  string
		state SessionState
		want  Destination
	}{
		{name: "anonymous", state: SessionState{}, want: DestLogin},
		{name: "authenticated without account", state: SessionState{IsAuthenticated: true}, want: DestLogin},
		{name: "admin", state: authed(RoleAdmin, true), want: DestAdmin},
		{name: "unapproved admin still lands on admin", state: authed(RoleAdmin, false), want: DestAdmin},
		{name: "unapproved lecturer", state: authed(RoleLecturer, false), want: DestApprovalPending},
		{name: "unapproved employer", state: authed(RoleEmployer, false), want: DestApprovalPending},
		{name: "lecturer", state: authed(RoleLecturer, true), want: DestCourses},
		{name: "instructor", state: authed(RoleInstructor, true), want: DestCourses},
		{name: "supervisor", state: authed(RoleSupervisor, true), want: DestProjectManagement},
		{name: "project manager", state: authed(RoleProjectManager, true), want: DestProjectManagement},
		{name: "student", state: authed(RoleStudent, true), want: DestBrowseProjects},
		{name: "unapproved student still lands on projects", state: authed(RoleStudent, false), want: DestBrowseProjects},
		{name: "employer", state: authed(RoleEmployer, true), want: DestMyProjects},
		{name: "unknown role", state: authed("bogus", true), want: DestHome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.state); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}
