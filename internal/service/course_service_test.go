package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadreg/acadreg-api/internal/models"
	appErrors "github.com/acadreg/acadreg-api/pkg/errors"
)

type mockCourseRepo struct {
	courses      map[string]*models.Course
	enrollCounts map[string]int
	createErr    error
	listCalls    int
	nextID       int
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses:      make(map[string]*models.Course),
		enrollCounts: make(map[string]int),
	}
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	for _, c := range m.courses {
		if c.Code == code {
			copied := *c
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	m.listCalls++
	var out []models.CourseDetail
	for _, c := range m.courses {
		out = append(out, models.CourseDetail{Course: *c})
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	course.ID = "course-" + string(rune('0'+m.nextID))
	stored := *course
	m.courses[course.ID] = &stored
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	stored := *course
	m.courses[course.ID] = &stored
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	return nil
}

func (m *mockCourseRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return m.enrollCounts[courseID], nil
}

type mockTeacherReader struct {
	teachers map[string]*models.Teacher
}

func (m *mockTeacherReader) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	if t, ok := m.teachers[userID]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type mockDepartmentReader struct {
	departments map[string]*models.Department
}

func (m *mockDepartmentReader) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

// memoryCacheRepo is an in-process CacheRepository used to observe cache
// traffic without Redis.
type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.entries {
		if ok, _ := filepath.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func newCourseFixture() (*CourseService, *mockCourseRepo, *memoryCacheRepo) {
	repo := newMockCourseRepo()
	teachers := &mockTeacherReader{teachers: map[string]*models.Teacher{
		"teacher-user": {ID: "t1", UserID: "teacher-user", Name: "Grace Hopper"},
	}}
	departments := &mockDepartmentReader{departments: map[string]*models.Department{
		"3f0b0c1e-6d52-4f3a-9f57-2f1f6f9c9a10": {ID: "3f0b0c1e-6d52-4f3a-9f57-2f1f6f9c9a10", Name: "Mathematics"},
	}}
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewCourseService(repo, teachers, departments, repo, cache, nil, zap.NewNop())
	return svc, repo, cacheRepo
}

func TestCourseCreate(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	course, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name:    "Linear Algebra",
		Code:    "math201",
		Credits: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "MATH201", course.Code)
	require.NotNil(t, course.CreatedBy)
	assert.Equal(t, "t1", *course.CreatedBy)
	assert.Len(t, repo.courses, 1)
}

func TestCourseCreateDuplicateCode(t *testing.T) {
	svc, _, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra II", Code: "math201", Credits: 3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateIdentifier.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateDuplicateCodeConstraintRace(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	repo.createErr = &pq.Error{Code: "23505"}

	_, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateIdentifier.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateWithoutTeacherProfile(t *testing.T) {
	svc, _, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), "plain-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateUnknownDepartment(t *testing.T) {
	svc, _, _ := newCourseFixture()

	deptID := "11111111-1111-4111-8111-111111111111"
	_, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3, DeptID: &deptID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateValidation(t *testing.T) {
	svc, _, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "LA", Code: "", Credits: 0,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseListCaching(t *testing.T) {
	svc, repo, cacheRepo := newCourseFixture()

	_, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.NoError(t, err)

	filter := models.CourseFilter{Page: 1, PageSize: 20}

	courses, pagination, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, repo.listCalls)
	assert.Len(t, cacheRepo.entries, 1)

	// second read is served from cache
	courses, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, repo.listCalls)
}

func TestCourseWriteInvalidatesCatalogCache(t *testing.T) {
	svc, repo, cacheRepo := newCourseFixture()

	course, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.NoError(t, err)

	filter := models.CourseFilter{Page: 1, PageSize: 20}
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, cacheRepo.entries, 1)

	_, err = svc.Update(context.Background(), course.ID, models.UpdateCourseRequest{
		Name: "Linear Algebra I", Credits: 4,
	})
	require.NoError(t, err)
	assert.Empty(t, cacheRepo.entries)

	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestCourseUpdateKeepsCode(t *testing.T) {
	svc, _, _ := newCourseFixture()

	course, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), course.ID, models.UpdateCourseRequest{
		Name: "Linear Algebra I", Credits: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "MATH201", updated.Code)
	assert.Equal(t, 4, updated.Credits)
}

func TestCourseGetReportsEnrollmentCount(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	course, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.NoError(t, err)

	summary, err := svc.Get(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.EnrolledCount)

	repo.enrollCounts[course.ID] = 12
	summary, err = svc.Get(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "MATH201", summary.Code)
	assert.Equal(t, 12, summary.EnrolledCount)

	byCode, err := svc.GetByCode(context.Background(), "math201")
	require.NoError(t, err)
	assert.Equal(t, 12, byCode.EnrolledCount)
}

func TestCourseGetByCode(t *testing.T) {
	svc, _, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.NoError(t, err)

	course, err := svc.GetByCode(context.Background(), "math201")
	require.NoError(t, err)
	assert.Equal(t, "MATH201", course.Code)

	_, err = svc.GetByCode(context.Background(), "NOPE999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseDelete(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	course, err := svc.Create(context.Background(), "teacher-user", models.CreateCourseRequest{
		Name: "Linear Algebra", Code: "MATH201", Credits: 3,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), course.ID))
	assert.Empty(t, repo.courses)

	err = svc.Delete(context.Background(), course.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
