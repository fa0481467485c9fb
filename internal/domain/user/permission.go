package user

type Permission string

const (
	PermissionPayrollView     Permission = "payroll.view"
	PermissionPayrollGenerate Permission = "payroll.generate"
	PermissionPayrollEdit     Permission = "payroll.edit"
	PermissionPayrollApprove  Permission = "payroll.approve"
	PermissionPayrollPay      Permission = "payroll.pay"
	PermissionPayrollSettings Permission = "payroll.settings"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermissionPayrollView,
		PermissionPayrollGenerate,
		PermissionPayrollEdit,
		PermissionPayrollApprove,
		PermissionPayrollPay,
		PermissionPayrollSettings,
	},
	RoleManager: {
		PermissionPayrollView,
		PermissionPayrollGenerate,
		PermissionPayrollEdit,
		PermissionPayrollApprove,
	},
	RoleEmployee: {},
	RolePending:  {
		// Pending role has no permissions
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
