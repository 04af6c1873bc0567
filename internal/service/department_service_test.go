package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadreg/acadreg-api/internal/models"
	appErrors "github.com/acadreg/acadreg-api/pkg/errors"
)

type mockDepartmentRepo struct {
	departments map[string]*models.Department
	nextID      int
}

func newMockDepartmentRepo() *mockDepartmentRepo {
	return &mockDepartmentRepo{departments: make(map[string]*models.Department)}
}

func (m *mockDepartmentRepo) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDepartmentRepo) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	var out []models.Department
	for _, d := range m.departments {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockDepartmentRepo) Create(ctx context.Context, dept *models.Department) error {
	for _, d := range m.departments {
		if d.Name == dept.Name {
			return &pq.Error{Code: "23505"}
		}
	}
	m.nextID++
	dept.ID = fmt.Sprintf("dept-%d", m.nextID)
	copied := *dept
	m.departments[dept.ID] = &copied
	return nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, dept *models.Department) error {
	for id, d := range m.departments {
		if id != dept.ID && d.Name == dept.Name {
			return &pq.Error{Code: "23505"}
		}
	}
	copied := *dept
	m.departments[dept.ID] = &copied
	return nil
}

func (m *mockDepartmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.departments, id)
	return nil
}

func TestDepartmentCreate(t *testing.T) {
	svc := NewDepartmentService(newMockDepartmentRepo(), nil, zap.NewNop())

	dept, err := svc.Create(context.Background(), models.CreateDepartmentRequest{Name: "  Mathematics  "})
	require.NoError(t, err)
	assert.Equal(t, "Mathematics", dept.Name)
	assert.NotEmpty(t, dept.ID)
}

func TestDepartmentCreateDuplicateName(t *testing.T) {
	svc := NewDepartmentService(newMockDepartmentRepo(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateDepartmentRequest{Name: "Mathematics"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), models.CreateDepartmentRequest{Name: "Mathematics"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateIdentifier.Code, appErrors.FromError(err).Code)
}

func TestDepartmentUpdateDuplicateName(t *testing.T) {
	repo := newMockDepartmentRepo()
	svc := NewDepartmentService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateDepartmentRequest{Name: "Mathematics"})
	require.NoError(t, err)
	physics, err := svc.Create(context.Background(), models.CreateDepartmentRequest{Name: "Physics"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), physics.ID, models.UpdateDepartmentRequest{Name: "Mathematics"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateIdentifier.Code, appErrors.FromError(err).Code)
}

func TestDepartmentDelete(t *testing.T) {
	repo := newMockDepartmentRepo()
	svc := NewDepartmentService(repo, nil, zap.NewNop())

	dept, err := svc.Create(context.Background(), models.CreateDepartmentRequest{Name: "Mathematics"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), dept.ID))
	assert.Empty(t, repo.departments)

	err = svc.Delete(context.Background(), dept.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
