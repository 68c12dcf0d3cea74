package domain

// Role is the organization-scoped role of the acting user, as asserted by the
// identity provider. The core never re-derives roles; it maps each role to a
// capability set once and refuses privileged transitions on that basis.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTreasurer  Role = "TREASURER"
	RoleBookkeeper Role = "BOOKKEEPER"
	RoleMember     Role = "MEMBER"
	RoleReadOnly   Role = "READ_ONLY"
)

// Permission is a single capability required by a core operation.
type Permission string

const (
	PermManageEntities  Permission = "manage_entities"  // Create/revise/delete versioned records
	PermManageAccounts  Permission = "manage_accounts"  // Chart-of-accounts changes
	PermPostTransaction Permission = "post_transaction" // Ledger postings
	PermVoidTransaction Permission = "void_transaction"
	PermManageBills     Permission = "manage_bills"
	PermRecordPayment   Permission = "record_payment"
	PermClosePeriod     Permission = "close_period"
	PermViewReports     Permission = "view_reports"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageEntities, PermManageAccounts, PermPostTransaction,
		PermVoidTransaction, PermManageBills, PermRecordPayment,
		PermClosePeriod, PermViewReports,
	},
	RoleTreasurer: {
		PermManageAccounts, PermPostTransaction, PermVoidTransaction,
		PermManageBills, PermRecordPayment, PermClosePeriod, PermViewReports,
	},
	RoleBookkeeper: {
		PermManageEntities, PermPostTransaction, PermManageBills,
		PermRecordPayment, PermViewReports,
	},
	RoleMember:   {PermViewReports},
	RoleReadOnly: {PermViewReports},
}

// ValidRole reports whether the role is one the system knows.
func ValidRole(role Role) bool {
	_, ok := rolePermissions[role]
	return ok
}

// PermissionsFor maps a role to its capability set. Unknown roles get no
// permissions.
func PermissionsFor(role Role) map[Permission]struct{} {
	perms := make(map[Permission]struct{}, len(rolePermissions[role]))
	for _, p := range rolePermissions[role] {
		perms[p] = struct{}{}
	}
	return perms
}

// Actor is the authenticated caller, threaded explicitly through every core
// call instead of being looked up from ambient state.
type Actor struct {
	UserID string
	Role   Role
}

// Can reports whether the actor's role grants the permission.
func (a Actor) Can(p Permission) bool {
	_, ok := PermissionsFor(a.Role)[p]
	return ok
}
