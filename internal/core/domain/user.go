package domain

import "time"

// Built-in roles created at bootstrap. SuperAdmin and Monitor are hidden:
// they are never offered in the console UI but remain enforceable.
const (
	RoleSuperAdmin = "SuperAdmin"
	RoleAdmin      = "Admin"
	RoleEditor     = "Editor"
	RoleReader     = "Reader"
	RoleMonitor    = "Monitor"

	// RoleAny is the sentinel accepted by the role gate meaning "any
	// authenticated user".
	RoleAny = "All"
)

// SuperUserID is reserved for the built-in super-administrator. Its
// password can only be set through startup provisioning, never through
// the reset-password operation.
const SuperUserID = 0

// User models an operator account. PasswordHash never leaves the backend.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Role is a named permission bucket. Hidden roles are enforceable but not
// offered for assignment in the console.
type Role struct {
	Name        string `json:"role"`
	Description string `json:"desc,omitempty"`
	Hidden      bool   `json:"hide,omitempty"`
}

// BootstrapRoles is the fixed role set guaranteed to exist after startup.
func BootstrapRoles() []Role {
	return []Role{
		{Name: RoleSuperAdmin, Description: "all permissions", Hidden: true},
		{Name: RoleAdmin, Description: "administration, account creation and validation"},
		{Name: RoleEditor, Description: "metadata edition and deletion"},
		{Name: RoleReader, Description: "read-only access to metadata"},
		{Name: RoleMonitor, Description: "node monitoring", Hidden: true},
	}
}
