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

type mockStudentRepo struct {
	students map[string]*models.Student
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByRoll(ctx context.Context, roll string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Roll == roll {
			copied := *s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	copied := *student
	m.students[student.ID] = &copied
	return nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo) {
	repo := &mockStudentRepo{students: map[string]*models.Student{
		"s1": {ID: "s1", UserID: "user-1", Name: "Alice Liddell", Roll: "CS-001", Email: "alice@example.com"},
	}}
	return NewStudentService(repo, nil, zap.NewNop()), repo
}

func TestStudentGet(t *testing.T) {
	svc, _ := newStudentFixture()

	student, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "CS-001", student.Roll)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentGetByUserID(t *testing.T) {
	svc, _ := newStudentFixture()

	student, err := svc.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", student.ID)

	_, err = svc.GetByUserID(context.Background(), "user-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdate(t *testing.T) {
	svc, repo := newStudentFixture()

	updated, err := svc.Update(context.Background(), "s1", models.UpdateStudentRequest{
		Name:  "Alice P. Liddell",
		Email: "Alice.Liddell@Example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice.liddell@example.com", updated.Email)
	// roll and owning account are immutable
	assert.Equal(t, "CS-001", updated.Roll)
	assert.Equal(t, "user-1", updated.UserID)
	assert.Equal(t, "Alice P. Liddell", repo.students["s1"].Name)
}

func TestStudentUpdateValidation(t *testing.T) {
	svc, _ := newStudentFixture()

	_, err := svc.Update(context.Background(), "s1", models.UpdateStudentRequest{
		Name:  "A",
		Email: "not-an-email",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
