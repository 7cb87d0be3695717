package core

// Actor roles
const (
	RoleAdmin       = "admin:"
	RoleCoordinator = "admin:coordinator"
)

// Actor is the authenticated portal user behind an admin operation, as supplied by the identity provider.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return len(a.Role) >= len(RoleAdmin) && a.Role[:len(RoleAdmin)] == RoleAdmin
}
