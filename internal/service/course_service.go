package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadreg/acadreg-api/internal/models"
	"github.com/acadreg/acadreg-api/internal/repository"
	appErrors "github.com/acadreg/acadreg-api/pkg/errors"
)

const courseCachePrefix = "courses:"

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type courseTeacherReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type courseDepartmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

type courseEnrollmentCounter interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

type courseCatalogPayload struct {
	Courses    []models.CourseDetail `json:"courses"`
	Pagination models.Pagination     `json:"pagination"`
}

// CourseService manages the course catalog. Catalog pages are cached in
// Redis and invalidated on any write.
type CourseService struct {
	repo        courseRepository
	teachers    courseTeacherReader
	departments courseDepartmentReader
	enrollments courseEnrollmentCounter
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService creates a course service.
func NewCourseService(repo courseRepository, teachers courseTeacherReader, departments courseDepartmentReader, enrollments courseEnrollmentCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:        repo,
		teachers:    teachers,
		departments: departments,
		enrollments: enrollments,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns a paginated catalog page, served from cache when possible.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	key := courseListCacheKey(filter)
	if s.cache.Enabled() {
		var cached courseCatalogPayload
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Courses, &cached.Pagination, nil
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, courseCatalogPayload{Courses: courses, Pagination: *pagination}, 0); err != nil {
			s.logger.Warn("failed to cache course catalog page", zap.Error(err))
		}
	}
	return courses, pagination, nil
}

// Get returns a course by identifier together with its enrollment count.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseSummary, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return s.summarize(ctx, course)
}

// GetByCode returns a course by its unique code together with its
// enrollment count.
func (s *CourseService) GetByCode(ctx context.Context, code string) (*models.CourseSummary, error) {
	course, err := s.repo.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return s.summarize(ctx, course)
}

func (s *CourseService) summarize(ctx context.Context, course *models.Course) (*models.CourseSummary, error) {
	count, err := s.enrollments.CountByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	return &models.CourseSummary{Course: *course, EnrolledCount: count}, nil
}

// Create adds a catalog entry. The acting account must own a teacher
// profile, which becomes the course creator.
func (s *CourseService) Create(ctx context.Context, userID string, req models.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	teacher, err := s.teachers.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no teacher profile for account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}

	if req.DeptID != nil {
		if err := s.requireDepartment(ctx, *req.DeptID); err != nil {
			return nil, err
		}
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if _, err := s.repo.FindByCode(ctx, code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateIdentifier, fmt.Sprintf("course code %s already exists", code))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}

	course := &models.Course{
		Name:        strings.TrimSpace(req.Name),
		Code:        code,
		Description: req.Description,
		Credits:     req.Credits,
		DeptID:      req.DeptID,
		CreatedBy:   &teacher.ID,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentifier, fmt.Sprintf("course code %s already exists", code))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Update replaces the mutable fields of a course. The code is immutable
// once assigned.
func (s *CourseService) Update(ctx context.Context, id string, req models.UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.DeptID != nil {
		if err := s.requireDepartment(ctx, *req.DeptID); err != nil {
			return nil, err
		}
	}

	course.Name = strings.TrimSpace(req.Name)
	course.Description = req.Description
	course.Credits = req.Credits
	course.DeptID = req.DeptID

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course and, through the schema cascade, its
// enrollments.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.invalidateCatalog(ctx)
	return nil
}

func (s *CourseService) requireDepartment(ctx context.Context, id string) error {
	if _, err := s.departments.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, courseCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate course catalog cache", zap.Error(err))
	}
}

func courseListCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("%slist:%d:%d:%s:%s:%s:%s",
		courseCachePrefix, filter.Page, filter.PageSize, filter.DeptID, filter.Search, filter.SortBy, filter.SortOrder)
}
