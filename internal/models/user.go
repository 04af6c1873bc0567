package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User represents an account stored in the users table. The role is fixed
// at creation and never updated. Non-admin accounts always have exactly one
// matching profile row (students or teachers), created in the same
// transaction as the account.
type User struct {
	ID                string     `db:"id" json:"id"`
	Username          string     `db:"username" json:"username"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	Role              UserRole   `db:"role" json:"role"`
	Enabled           bool       `db:"enabled" json:"enabled"`
	ResetToken        *string    `db:"reset_token" json:"-"`
	ResetTokenExpires *time.Time `db:"reset_token_expires" json:"-"`
	LastLogin         *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// PasswordResetState is the tagged view of the two reset columns. Either no
// token exists, or one was issued with a value and an expiry instant.
type PasswordResetState struct {
	Issued  bool
	Value   string
	Expires time.Time
}

// ResetState collapses the nullable token columns into a single state.
func (u *User) ResetState() PasswordResetState {
	if u.ResetToken == nil || u.ResetTokenExpires == nil {
		return PasswordResetState{}
	}
	return PasswordResetState{Issued: true, Value: *u.ResetToken, Expires: *u.ResetTokenExpires}
}

// Live reports whether the token may still be consumed at the given instant.
func (s PasswordResetState) Live(now time.Time) bool {
	return s.Issued && now.Before(s.Expires)
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Enabled   *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
