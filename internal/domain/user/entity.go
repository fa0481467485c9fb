package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Can run and approve payroll
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID    string
	CompanyID string
	Role      Role
}

// IsOwner checks if user is company owner
func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}

// IsManager checks if user is manager or owner
func (a Actor) IsManager() bool {
	return a.Role == RoleManager || a.Role == RoleOwner
}
