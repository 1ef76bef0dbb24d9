package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles. Each role carries every right of
// the roles below it: user < staff < admin < super_admin.
type Role string

const (
	RoleUser       Role = "user"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every known role from least to most privileged.
var Roles = []Role{RoleUser, RoleStaff, RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRole converts free text into a Role. Unknown strings are rejected
// instead of being treated as the least privileged role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is an account that can submit, handle or administer complaints.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FullName     string    `gorm:"size:150;not null" json:"full_name"`
	Role         Role      `gorm:"type:varchar(20);not null;default:user;index" json:"role"`
	Active       bool      `gorm:"not null;default:true" json:"is_active"`
	Department   *string   `gorm:"size:100" json:"department,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
