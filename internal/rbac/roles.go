package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleDispatcher = "dispatcher"
	RoleGruista    = "gruista" // tow-truck driver
	RoleWorkshop   = "workshop_manager"
	RoleAdmin      = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
