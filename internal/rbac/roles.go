package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin       = "admin"
	RoleSalesperson = "salesperson"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
