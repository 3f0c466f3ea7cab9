package user

import (
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/types"
)

// Role controls entitlement bypass and administrative access.
type Role string

const (
	RoleUser  Role = "user"
	RoleVIP   Role = "vip"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVIP, RoleAdmin:
		return true
	}
	return false
}

// User is an account holder with a credit balance.
//
// Balance is mutated exclusively by the engine's ledger operations; no other
// component may write it directly.
type User struct {
	types.Entity
	ID       id.UserID     `json:"id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Role     Role          `json:"role"`
	Balance  types.Credits `json:"balance"`
	Active   bool          `json:"active"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Update carries the mutable fields of a user. Zero-value fields are
// left unchanged.
type Update struct {
	Username string
	Email    string
	Role     Role
}
