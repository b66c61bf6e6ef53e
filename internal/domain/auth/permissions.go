package auth

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	PermEmployeesRead  = "employees.read"
	PermEmployeesWrite = "employees.write"
	PermReviewsRead    = "reviews.read"
	PermReviewsWrite   = "reviews.write"
	PermReviewsDelete  = "reviews.delete"
	PermTemplatesWrite = "templates.write"
	PermTeamRead       = "team.read"
	PermTeamManage     = "team.manage"
	PermBillingRead    = "billing.read"
	PermBillingManage  = "billing.manage"
	PermAuditRead      = "audit.read"
)

var DefaultPermissions = []string{
	PermEmployeesRead,
	PermEmployeesWrite,
	PermReviewsRead,
	PermReviewsWrite,
	PermReviewsDelete,
	PermTemplatesWrite,
	PermTeamRead,
	PermTeamManage,
	PermBillingRead,
	PermBillingManage,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleAdmin: DefaultPermissions,
	RoleMember: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermReviewsRead,
		PermReviewsWrite,
		PermTeamRead,
		PermBillingRead,
	},
}

func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

func HasPermission(role, perm string) bool {
	for _, granted := range RolePermissions[role] {
		if granted == perm {
			return true
		}
	}
	return false
}
