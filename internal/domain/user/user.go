package user

import (
	"context"
	"strings"
)

// Role is the permission level of a canteen user.
type Role string

// Known roles.
const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}

// User is an employee registered in the canteen directory.
type User struct {
	ID        int64
	Firstname string
	Lastname  string
	Role      Role
}

// DisplayName returns "first last", trimmed when either part is empty.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.Firstname + " " + u.Lastname)
}

// Repository defines read operations for the user directory.
type Repository interface {
	// GetByIDs returns the users that exist among ids. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]User, error)
}
