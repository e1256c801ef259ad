package domain

import "time"

// User is an account able to sign in. Agents and admins are users with a
// staff role.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the request identity for the user.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}
