package models

import "time"

// Student is the role-specific profile owned by a STUDENT account. It
// references its account by UserID only; the account never points back.
type Student struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Roll      string    `db:"roll" json:"roll"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UpdateStudentRequest updates the mutable fields of a student profile.
// The owning account is never reassigned.
type UpdateStudentRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// StudentRegistration pairs a freshly created account with its profile so
// callers never observe a student account without a profile.
type StudentRegistration struct {
	Account User    `json:"account"`
	Profile Student `json:"profile"`
}
