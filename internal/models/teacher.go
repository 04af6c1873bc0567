package models

import "time"

// Teacher is the role-specific profile owned by a TEACHER account.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	DeptID    *string   `db:"dept_id" json:"dept_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherDetail enriches Teacher with its department name.
type TeacherDetail struct {
	Teacher
	DeptName *string `db:"dept_name" json:"dept_name,omitempty"`
}

// TeacherFilter encapsulates search parameters for listing teachers.
type TeacherFilter struct {
	Search    string
	DeptID    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UpdateTeacherRequest updates the mutable fields of a teacher profile.
type UpdateTeacherRequest struct {
	Name   string  `json:"name" validate:"required,min=2,max=100"`
	Email  string  `json:"email" validate:"required,email"`
	Phone  string  `json:"phone" validate:"max=20"`
	DeptID *string `json:"dept_id" validate:"omitempty,uuid"`
}

// TeacherRegistration pairs a freshly created account with its profile.
type TeacherRegistration struct {
	Account User    `json:"account"`
	Profile Teacher `json:"profile"`
}
