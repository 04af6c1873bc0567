package models

import "time"

// Course is an independent catalog entry. It exists regardless of
// enrollment and carries id-based references to its department and the
// teacher who created it.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	Credits     int       `db:"credits" json:"credits"`
	DeptID      *string   `db:"dept_id" json:"dept_id,omitempty"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseSummary pairs a catalog entry with its current enrollment count.
type CourseSummary struct {
	Course
	EnrolledCount int `json:"enrolled_count"`
}

// CourseDetail enriches Course with department and creator names.
type CourseDetail struct {
	Course
	DeptName    *string `db:"dept_name" json:"dept_name,omitempty"`
	CreatorName *string `db:"creator_name" json:"creator_name,omitempty"`
}

// CreateCourseRequest carries the payload for adding a catalog entry.
type CreateCourseRequest struct {
	Name        string  `json:"name" validate:"required,min=3,max=150"`
	Code        string  `json:"code" validate:"required,min=2,max=20"`
	Description string  `json:"description" validate:"max=2000"`
	Credits     int     `json:"credits" validate:"required,min=1,max=10"`
	DeptID      *string `json:"dept_id" validate:"omitempty,uuid"`
}

// UpdateCourseRequest carries a full-replace update for a catalog entry.
type UpdateCourseRequest struct {
	Name        string  `json:"name" validate:"required,min=3,max=150"`
	Description string  `json:"description" validate:"max=2000"`
	Credits     int     `json:"credits" validate:"required,min=1,max=10"`
	DeptID      *string `json:"dept_id" validate:"omitempty,uuid"`
}

// CourseFilter holds list parameters for the course catalog.
type CourseFilter struct {
	Search    string
	DeptID    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
