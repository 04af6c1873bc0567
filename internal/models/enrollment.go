package models

import "time"

// Enrollment is one row of the student↔course relation. The composite
// primary key (student_id, course_id) guarantees a pair appears at most
// once; membership is the only state.
type Enrollment struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail joins the enrollment row with course info for listings.
type EnrollmentDetail struct {
	Enrollment
	CourseName string `db:"course_name" json:"course_name"`
	CourseCode string `db:"course_code" json:"course_code"`
	Credits    int    `db:"credits" json:"credits"`
}
