package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acadreg/acadreg-api/internal/models"
	appErrors "github.com/acadreg/acadreg-api/pkg/errors"
	"github.com/acadreg/acadreg-api/pkg/export"
)

type enrollmentRepository interface {
	Enroll(ctx context.Context, studentID, courseID string, at time.Time) (bool, error)
	Unenroll(ctx context.Context, studentID, courseID string) (bool, error)
	ListEnrolled(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListAvailable(ctx context.Context, studentID string) ([]models.Course, error)
}

type enrollmentStudentReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EnrollmentService mutates the student/course relation on behalf of the
// acting account. Every operation takes the caller's user ID explicitly
// and resolves their own student profile from it.
type EnrollmentService struct {
	repo     enrollmentRepository
	students enrollmentStudentReader
	courses  enrollmentCourseReader
	audits   enrollmentAuditor
	logger   *zap.Logger
	now      func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentReader, courses enrollmentCourseReader, audits enrollmentAuditor, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:     repo,
		students: students,
		courses:  courses,
		audits:   audits,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enroll adds the caller's student to a course. Enrolling twice leaves the
// set unchanged and reports ALREADY_ENROLLED.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	student, err := s.resolveStudent(ctx, userID)
	if err != nil {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	at := s.now()
	inserted, err := s.repo.Enroll(ctx, student.ID, course.ID, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, fmt.Sprintf("already enrolled in %s", course.Code))
	}

	s.audit(ctx, userID, models.AuditActionEnroll, course.ID)

	return &models.Enrollment{StudentID: student.ID, CourseID: course.ID, EnrolledAt: at}, nil
}

// Unenroll removes the caller's student from a course. Removing a course
// the student is not enrolled in leaves the set unchanged and reports
// NOT_ENROLLED.
func (s *EnrollmentService) Unenroll(ctx context.Context, userID, courseID string) error {
	student, err := s.resolveStudent(ctx, userID)
	if err != nil {
		return err
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	removed, err := s.repo.Unenroll(ctx, student.ID, course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotEnrolled, fmt.Sprintf("not enrolled in %s", course.Code))
	}

	s.audit(ctx, userID, models.AuditActionUnenroll, course.ID)

	return nil
}

// ListEnrolled returns the caller's current enrollments, newest first.
func (s *EnrollmentService) ListEnrolled(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	student, err := s.resolveStudent(ctx, userID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.repo.ListEnrolled(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListAvailable returns the catalog minus the caller's enrollment set,
// compared by course id.
func (s *EnrollmentService) ListAvailable(ctx context.Context, userID string) ([]models.Course, error) {
	student, err := s.resolveStudent(ctx, userID)
	if err != nil {
		return nil, err
	}
	courses, err := s.repo.ListAvailable(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	return courses, nil
}

// ExportEnrolled renders the caller's enrollments as a CSV or PDF roster.
// An empty format defaults to CSV.
func (s *EnrollmentService) ExportEnrolled(ctx context.Context, userID, format string) ([]byte, string, error) {
	student, err := s.resolveStudent(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	enrollments, err := s.repo.ListEnrolled(ctx, student.ID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"Code", "Course", "Credits", "Enrolled At"},
	}
	for _, e := range enrollments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Code":        e.CourseCode,
			"Course":      e.CourseName,
			"Credits":     fmt.Sprintf("%d", e.Credits),
			"Enrolled At": e.EnrolledAt.Format("2006-01-02"),
		})
	}

	title := fmt.Sprintf("Enrollments for %s (%s)", student.Name, student.Roll)
	switch format {
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case "csv", "":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *EnrollmentService) resolveStudent(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student profile for account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return student, nil
}

func (s *EnrollmentService) audit(ctx context.Context, userID, action, courseID string) {
	if s.audits == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"course_id": courseID})
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "enrollment",
		ResourceID: &courseID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}
