package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadreg/acadreg-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "enabled", "reset_token", "reset_token_expires", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "alice", "alice@example.com", "hash", "STUDENT", true, nil, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, password_hash, role, enabled, reset_token, reset_token_expires, last_login, created_at, updated_at FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Nil(t, user.ResetToken)
}

func TestUserRepositoryExistsByUsername(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	taken, err := repo.ExistsByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE username = $1")).
		WithArgs("bob").
		WillReturnError(sql.ErrNoRows)

	taken, err = repo.ExistsByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUserRepositoryCreateStudentAccount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", "hash", "STUDENT", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Alice Liddell", "CS-001", "alice@example.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", Role: models.RoleStudent, Enabled: true}
	student := &models.Student{Name: "Alice Liddell", Roll: "CS-001", Email: "alice@example.com"}

	err := repo.CreateStudentAccount(context.Background(), user, student)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, user.ID, student.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateStudentAccountRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", Role: models.RoleStudent, Enabled: true}
	student := &models.Student{Name: "Alice Liddell", Roll: "CS-001", Email: "alice@example.com"}

	err := repo.CreateStudentAccount(context.Background(), user, student)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryConsumeResetToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("token-1", "newhash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	consumed, err := repo.ConsumeResetToken(context.Background(), "token-1", "newhash", now)
	require.NoError(t, err)
	assert.True(t, consumed)

	// unknown, expired, or already consumed: zero rows, no error
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("token-1", "newhash", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	consumed, err = repo.ConsumeResetToken(context.Background(), "token-1", "newhash", now)
	require.NoError(t, err)
	assert.False(t, consumed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
