package account

// Destination names a frontend landing route.
type Destination string

const (
	DestLogin             Destination = "login"
	DestAdmin             Destination = "admin"
	DestApprovalPending   Destination = "approval-pending"
	DestCourses           Destination = "courses"
	DestProjectManagement Destination = "project-management"
	DestMyProjects        Destination = "my-projects"
	DestBrowseProjects    Destination = "projects"
	DestHome              Destination = "home"
)

// Route maps a session state to its landing destination. Admins bypass the
// approval gate entirely; students are auto-approved so they never see the
// pending screen either.
func Route(st SessionState) Destination {
	if !st.IsAuthenticated || st.Account == nil {
		return DestLogin
	}
	acct := st.Account
	if acct.IsAdmin() {
		return DestAdmin
	}
	if !st.IsApproved && !acct.IsStudent() {
		return DestApprovalPending
	}
	switch {
	case acct.IsLecturer():
		return DestCourses
	case acct.IsSupervisor():
		return DestProjectManagement
	case acct.IsStudent():
		return DestBrowseProjects
	case acct.IsEmployer():
		return DestMyProjects
	}
	return DestHome
}
