// Package models contains the persistent entities of the auth service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user role. Roles map to permission sets via the rbac package.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleFormBuilder Role = "FormBuilder"
	RoleFormUser    Role = "FormUser"
	RoleViewer      Role = "Viewer"
)

// User is an authenticated user. From the token core's perspective the entity
// is read-mostly: it is created/refreshed on identity-provider login and read
// when minting access tokens or serving /me and /permissions.
type User struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	Roles       []Role
	Attributes  map[string]any
	TenantID    uuid.UUID
	IsActive    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleStrings returns the roles as plain strings, in declaration order.
func (u *User) RoleStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}
