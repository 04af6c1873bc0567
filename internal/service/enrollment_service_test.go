package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadreg/acadreg-api/internal/models"
	appErrors "github.com/acadreg/acadreg-api/pkg/errors"
)

type enrollmentKey struct {
	studentID string
	courseID  string
}

type mockEnrollmentRepo struct {
	enrolled map[enrollmentKey]time.Time
	courses  map[string]*models.Course
}

func newMockEnrollmentRepo(courses ...*models.Course) *mockEnrollmentRepo {
	m := &mockEnrollmentRepo{
		enrolled: make(map[enrollmentKey]time.Time),
		courses:  make(map[string]*models.Course),
	}
	for _, c := range courses {
		m.courses[c.ID] = c
	}
	return m
}

func (m *mockEnrollmentRepo) Enroll(ctx context.Context, studentID, courseID string, at time.Time) (bool, error) {
	key := enrollmentKey{studentID, courseID}
	if _, ok := m.enrolled[key]; ok {
		return false, nil
	}
	m.enrolled[key] = at
	return true, nil
}

func (m *mockEnrollmentRepo) Unenroll(ctx context.Context, studentID, courseID string) (bool, error) {
	key := enrollmentKey{studentID, courseID}
	if _, ok := m.enrolled[key]; !ok {
		return false, nil
	}
	delete(m.enrolled, key)
	return true, nil
}

func (m *mockEnrollmentRepo) ListEnrolled(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for key, at := range m.enrolled {
		if key.studentID != studentID {
			continue
		}
		course := m.courses[key.courseID]
		out = append(out, models.EnrollmentDetail{
			Enrollment: models.Enrollment{StudentID: key.studentID, CourseID: key.courseID, EnrolledAt: at},
			CourseName: course.Name,
			CourseCode: course.Code,
			Credits:    course.Credits,
		})
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListAvailable(ctx context.Context, studentID string) ([]models.Course, error) {
	var out []models.Course
	for id, course := range m.courses {
		if _, ok := m.enrolled[enrollmentKey{studentID, id}]; !ok {
			out = append(out, *course)
		}
	}
	return out, nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	if s, ok := m.students[userID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentAuditor struct {
	logs []*models.AuditLog
}

func (m *mockEnrollmentAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *mockEnrollmentAuditor) {
	algebra := &models.Course{ID: "c1", Name: "Algebra", Code: "MATH101", Credits: 3}
	chemistry := &models.Course{ID: "c2", Name: "Chemistry", Code: "CHEM101", Credits: 4}

	repo := newMockEnrollmentRepo(algebra, chemistry)
	students := &mockStudentReader{students: map[string]*models.Student{
		"user-1": {ID: "s1", UserID: "user-1", Name: "Alice Liddell", Roll: "CS-001"},
	}}
	courses := &mockCourseReader{courses: repo.courses}
	audits := &mockEnrollmentAuditor{}
	svc := NewEnrollmentService(repo, students, courses, audits, zap.NewNop())
	return svc, repo, audits
}

func TestEnroll(t *testing.T) {
	svc, repo, audits := newEnrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "s1", enrollment.StudentID)
	assert.Equal(t, "c1", enrollment.CourseID)
	assert.Len(t, repo.enrolled, 1)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionEnroll, audits.logs[0].Action)
}

func TestEnrollTwiceReportsAlreadyEnrolled(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-1", "c1")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), "user-1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)
	// the enrollment set is unchanged
	assert.Len(t, repo.enrolled, 1)
}

func TestEnrollUnknownCourse(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollWithoutStudentProfile(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-without-profile", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUnenroll(t *testing.T) {
	svc, repo, audits := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-1", "c1")
	require.NoError(t, err)

	err = svc.Unenroll(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	assert.Empty(t, repo.enrolled)
	require.Len(t, audits.logs, 2)
	assert.Equal(t, models.AuditActionUnenroll, audits.logs[1].Action)
}

func TestUnenrollNotEnrolled(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	err := svc.Unenroll(context.Background(), "user-1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestListAvailableExcludesEnrolled(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	available, err := svc.ListAvailable(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, available, 2)

	_, err = svc.Enroll(context.Background(), "user-1", "c1")
	require.NoError(t, err)

	available, err = svc.ListAvailable(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "c2", available[0].ID)

	enrolled, err := svc.ListEnrolled(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.Equal(t, "MATH101", enrolled[0].CourseCode)
}

func TestExportEnrolledCSV(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "user-1", "c1")
	require.NoError(t, err)

	payload, contentType, err := svc.ExportEnrolled(context.Background(), "user-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Code,Course,Credits,Enrolled At"))
	assert.Contains(t, body, "MATH101")
	assert.Contains(t, body, "Algebra")
}

func TestExportEnrolledUnsupportedFormat(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, _, err := svc.ExportEnrolled(context.Background(), "user-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
