package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/acadreg/acadreg-api/internal/models"
	"github.com/acadreg/acadreg-api/internal/repository"
	appErrors "github.com/acadreg/acadreg-api/pkg/errors"
)

type identityRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateStudentAccount(ctx context.Context, user *models.User, student *models.Student) error
	CreateTeacherAccount(ctx context.Context, user *models.User, teacher *models.Teacher) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// IdentityService creates accounts and binds each to its role-specific
// profile. Registration hashes the password before anything is persisted
// and performs both inserts in one transaction, so no account row ever
// outlives a failed profile insert.
type IdentityService struct {
	repo      identityRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewIdentityService constructs an IdentityService instance.
func NewIdentityService(repo identityRepository, validate *validator.Validate, logger *zap.Logger) *IdentityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{repo: repo, validator: validate, logger: logger}
}

// RegisterStudent creates a STUDENT account together with its profile.
func (s *IdentityService) RegisterStudent(ctx context.Context, req models.RegisterStudentRequest) (*models.StudentRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student registration payload")
	}

	if err := s.checkIdentifiers(ctx, req.Username, req.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     strings.ToLower(req.Username),
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		Enabled:      true,
	}
	student := &models.Student{
		Name:  req.Name,
		Roll:  req.Roll,
		Email: user.Email,
	}

	if err := s.repo.CreateStudentAccount(ctx, user, student); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentifier, "username, email or roll already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register student")
	}

	s.audit(ctx, user.ID, "student")

	return &models.StudentRegistration{Account: *user, Profile: *student}, nil
}

// RegisterTeacher creates a TEACHER account together with its profile.
func (s *IdentityService) RegisterTeacher(ctx context.Context, req models.RegisterTeacherRequest) (*models.TeacherRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher registration payload")
	}

	if err := s.checkIdentifiers(ctx, req.Username, req.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     strings.ToLower(req.Username),
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Role:         models.RoleTeacher,
		Enabled:      true,
	}
	teacher := &models.Teacher{
		Name:  req.Name,
		Email: user.Email,
		Phone: req.Phone,
	}

	if err := s.repo.CreateTeacherAccount(ctx, user, teacher); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentifier, "username or email already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register teacher")
	}

	s.audit(ctx, user.ID, "teacher")

	return &models.TeacherRegistration{Account: *user, Profile: *teacher}, nil
}

// FindByUsername returns the account for a username.
func (s *IdentityService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.ToLower(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return user, nil
}

// FindByEmail returns the account for an email address.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return user, nil
}

// ExistsByUsername reports whether a username is taken.
func (s *IdentityService) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	taken, err := s.repo.ExistsByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	return taken, nil
}

// ExistsByEmail reports whether an email is taken.
func (s *IdentityService) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	taken, err := s.repo.ExistsByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	return taken, nil
}

// checkIdentifiers pre-validates uniqueness for a friendlier error before
// the insert. The unique constraints remain authoritative; a race between
// the check and the insert still surfaces as a duplicate from the store.
func (s *IdentityService) checkIdentifiers(ctx context.Context, username, email string) error {
	taken, err := s.repo.ExistsByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrDuplicateIdentifier, "username already in use")
	}

	taken, err = s.repo.ExistsByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrDuplicateIdentifier, "email already in use")
	}
	return nil
}

func (s *IdentityService) audit(ctx context.Context, userID, role string) {
	payload, _ := json.Marshal(map[string]string{"role": role})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionRegister,
		Resource:   "identity",
		ResourceID: &userID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record registration audit log", zap.Error(err))
	}
}
