package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/acadreg/acadreg-api/internal/models"
)

// EnrollmentRepository handles the student↔course join table. The composite
// primary key on (student_id, course_id) arbitrates concurrent mutations:
// inserts and deletes report whether they changed a row, and the service
// layer turns a no-op into the matching idempotence signal.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll adds the (student, course) pair. It returns false without error
// when the pair already exists.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentID, courseID string, at time.Time) (bool, error) {
	const query = `INSERT INTO course_enrollments (student_id, course_id, enrolled_at)
        VALUES ($1, $2, $3) ON CONFLICT (student_id, course_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, studentID, courseID, at)
	if err != nil {
		return false, fmt.Errorf("enroll student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enroll student rows: %w", err)
	}
	return affected == 1, nil
}

// Unenroll removes the (student, course) pair. It returns false without
// error when no such pair existed.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `DELETE FROM course_enrollments WHERE student_id = $1 AND course_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("unenroll student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unenroll student rows: %w", err)
	}
	return affected == 1, nil
}

// ListEnrolled returns the student's enrollments joined with course info,
// newest first.
func (r *EnrollmentRepository) ListEnrolled(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.student_id, e.course_id, e.enrolled_at,
        c.name AS course_name, c.code AS course_code, c.credits
        FROM course_enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1
        ORDER BY e.enrolled_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return enrollments, nil
}

// ListAvailable returns all courses the student is not enrolled in. The
// comparison is by course id, so the result stays correct as catalog rows
// are renamed or otherwise edited.
func (r *EnrollmentRepository) ListAvailable(ctx context.Context, studentID string) ([]models.Course, error) {
	const query = `SELECT id, name, code, description, credits, dept_id, created_by, created_at, updated_at
        FROM courses c
        WHERE NOT EXISTS (
            SELECT 1 FROM course_enrollments e
            WHERE e.course_id = c.id AND e.student_id = $1
        )
        ORDER BY c.code ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// CountByCourse returns the number of students enrolled in a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_enrollments WHERE course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return total, nil
}
