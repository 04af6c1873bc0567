package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentRepositoryEnroll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_enrollments")).
		WithArgs("s1", "c1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.Enroll(context.Background(), "s1", "c1", at)
	require.NoError(t, err)
	assert.True(t, inserted)

	// conflicting pair: ON CONFLICT DO NOTHING reports zero rows
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_enrollments")).
		WithArgs("s1", "c1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err = repo.Enroll(context.Background(), "s1", "c1", at)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUnenroll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_enrollments WHERE student_id = $1 AND course_id = $2")).
		WithArgs("s1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := repo.Unenroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, removed)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_enrollments WHERE student_id = $1 AND course_id = $2")).
		WithArgs("s1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err = repo.Unenroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	at := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"student_id", "course_id", "enrolled_at", "course_name", "course_code", "credits"}).
		AddRow("s1", "c1", at, "Algebra", "MATH101", 3)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT e.student_id, e.course_id, e.enrolled_at")).
		WithArgs("s1").
		WillReturnRows(rows)

	enrollments, err := repo.ListEnrolled(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "MATH101", enrollments[0].CourseCode)
	assert.Equal(t, 3, enrollments[0].Credits)
}

func TestEnrollmentRepositoryListAvailable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "code", "description", "credits", "dept_id", "created_by", "created_at", "updated_at"}).
		AddRow("c2", "Chemistry", "CHEM101", "", 4, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, code, description, credits, dept_id, created_by, created_at, updated_at")).
		WithArgs("s1").
		WillReturnRows(rows)

	courses, err := repo.ListAvailable(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "CHEM101", courses[0].Code)
}

func TestEnrollmentRepositoryCountByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_enrollments WHERE course_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	total, err := repo.CountByCourse(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 12, total)
}
