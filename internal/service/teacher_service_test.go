package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadreg/acadreg-api/internal/models"
	appErrors "github.com/acadreg/acadreg-api/pkg/errors"
)

type mockTeacherRepo struct {
	teachers map[string]*models.Teacher
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := m.teachers[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	for _, t := range m.teachers {
		if t.UserID == userID {
			copied := *t
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	var out []models.TeacherDetail
	for _, t := range m.teachers {
		out = append(out, models.TeacherDetail{Teacher: *t})
	}
	return out, len(out), nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	copied := *teacher
	m.teachers[teacher.ID] = &copied
	return nil
}

func newTeacherFixture() (*TeacherService, *mockTeacherRepo) {
	repo := &mockTeacherRepo{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", UserID: "user-1", Name: "Grace Hopper", Email: "grace@example.com"},
	}}
	departments := &mockDepartmentReader{departments: map[string]*models.Department{
		"3f0b0c1e-6d52-4f3a-9f57-2f1f6f9c9a10": {ID: "3f0b0c1e-6d52-4f3a-9f57-2f1f6f9c9a10", Name: "Mathematics"},
	}}
	return NewTeacherService(repo, departments, nil, zap.NewNop()), repo
}

func TestTeacherGetByUserID(t *testing.T) {
	svc, _ := newTeacherFixture()

	teacher, err := svc.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "t1", teacher.ID)

	_, err = svc.GetByUserID(context.Background(), "user-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherUpdate(t *testing.T) {
	svc, repo := newTeacherFixture()

	deptID := "3f0b0c1e-6d52-4f3a-9f57-2f1f6f9c9a10"
	updated, err := svc.Update(context.Background(), "t1", models.UpdateTeacherRequest{
		Name:   "Grace B. Hopper",
		Email:  "Grace.Hopper@Example.com",
		Phone:  "555-0100",
		DeptID: &deptID,
	})
	require.NoError(t, err)
	assert.Equal(t, "grace.hopper@example.com", updated.Email)
	require.NotNil(t, updated.DeptID)
	assert.Equal(t, deptID, *updated.DeptID)
	assert.Equal(t, "user-1", updated.UserID)
	assert.Equal(t, "Grace B. Hopper", repo.teachers["t1"].Name)
}

func TestTeacherUpdateUnknownDepartment(t *testing.T) {
	svc, _ := newTeacherFixture()

	deptID := "11111111-1111-4111-8111-111111111111"
	_, err := svc.Update(context.Background(), "t1", models.UpdateTeacherRequest{
		Name:   "Grace Hopper",
		Email:  "grace@example.com",
		DeptID: &deptID,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
