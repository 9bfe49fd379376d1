package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/repository"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

const (
	myPagePreview = 5
	myListPerPage = 10
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByName(ctx context.Context, name string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	GrantRole(ctx context.Context, userID string, role models.RoleName) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type userStudyLister interface {
	ListByAuthor(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error)
	ListHelpfulByUser(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error)
}

type visitedFileLister interface {
	ListVisitedFiles(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.File, int, error)
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	DisplayName string `json:"displayName" validate:"max=100"`
	Password    string `json:"password" validate:"required,min=8"`
	Admin       bool   `json:"admin"`
}

// UserService handles accounts and the per-user activity pages.
type UserService struct {
	repo      userRepository
	studies   userStudyLister
	files     studyFileLister
	visited   visitedFileLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, studies userStudyLister, files studyFileLister, visited visitedFileLister, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, studies: studies, files: files, visited: visited, validator: validate, logger: logger}
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new account. Admin only.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actor *models.JWTClaims) (*models.User, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	req.Name = strings.TrimSpace(req.Name)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create user payload")
	}

	roles := []models.RoleName{models.RoleStudent}
	if req.Admin {
		roles = append(roles, models.RoleAdmin)
	}
	user, err := s.create(ctx, req.Name, req.DisplayName, req.Password, roles)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("actor", actor.UserID))
	return user, nil
}

// EnsureAdmin makes sure an account with the given name exists and holds the Admin role.
// An existing account keeps its password.
func (s *UserService) EnsureAdmin(ctx context.Context, name, password string) error {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil
	}
	user, err := s.repo.FindByName(ctx, name)
	switch {
	case err == nil:
		if user.HasRole(models.RoleAdmin) {
			return nil
		}
		if err := s.repo.GrantRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant admin role")
		}
		s.logger.Info("admin role granted", zap.String("user_id", user.ID))
		return nil
	case errors.Is(err, sql.ErrNoRows):
		user, err := s.create(ctx, name, name, password, []models.RoleName{models.RoleAdmin})
		if err != nil {
			return err
		}
		s.logger.Info("admin account created", zap.String("user_id", user.ID))
		return nil
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin account")
	}
}

// MyPage returns the first few of the actor's studies, visited files and helpful-voted studies.
func (s *UserService) MyPage(ctx context.Context, actor *models.JWTClaims) (*dto.MyPage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	admin := actor.IsAdmin()

	studies, _, err := s.listStudies(ctx, s.studies.ListByAuthor, actor.UserID, admin, 1, myPagePreview)
	if err != nil {
		return nil, err
	}
	visited, _, err := s.listVisited(ctx, actor.UserID, admin, 1, myPagePreview)
	if err != nil {
		return nil, err
	}
	helpful, _, err := s.listStudies(ctx, s.studies.ListHelpfulByUser, actor.UserID, admin, 1, myPagePreview)
	if err != nil {
		return nil, err
	}

	return &dto.MyPage{
		User: models.UserInfo{
			ID:          user.ID,
			Name:        user.Name,
			DisplayName: user.DisplayName,
			Roles:       user.Roles,
		},
		Studies:        studies,
		VisitedFiles:   visited,
		HelpfulStudies: helpful,
	}, nil
}

// MyStudies pages through the studies the actor is credited on.
func (s *UserService) MyStudies(ctx context.Context, actor *models.JWTClaims, page int) ([]dto.StudySummary, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	return s.listStudies(ctx, s.studies.ListByAuthor, actor.UserID, actor.IsAdmin(), page, myListPerPage)
}

// HelpfulStudies pages through the studies the actor voted helpful.
func (s *UserService) HelpfulStudies(ctx context.Context, actor *models.JWTClaims, page int) ([]dto.StudySummary, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	return s.listStudies(ctx, s.studies.ListHelpfulByUser, actor.UserID, actor.IsAdmin(), page, myListPerPage)
}

// VisitedFiles pages through the files the actor opened, most recent first.
func (s *UserService) VisitedFiles(ctx context.Context, actor *models.JWTClaims, page int) ([]dto.FileView, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	return s.listVisited(ctx, actor.UserID, actor.IsAdmin(), page, myListPerPage)
}

type studyPageFunc func(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error)

func (s *UserService) listStudies(ctx context.Context, list studyPageFunc, userID string, admin bool, page, pageSize int) ([]dto.StudySummary, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	records, total, err := list(ctx, userID, admin, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list studies")
	}
	summaries, err := summarizeStudies(ctx, s.files, records, admin)
	if err != nil {
		return nil, nil, err
	}
	return summaries, models.NewPagination(page, pageSize, total), nil
}

func (s *UserService) listVisited(ctx context.Context, userID string, admin bool, page, pageSize int) ([]dto.FileView, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	files, total, err := s.visited.ListVisitedFiles(ctx, userID, admin, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visited files")
	}
	return dto.NewFileViews(FilterFiles(files, admin), admin), models.NewPagination(page, pageSize, total), nil
}

func (s *UserService) create(ctx context.Context, name, displayName, password string, roles []models.RoleName) (*models.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if displayName == "" {
		displayName = name
	}
	user := &models.User{
		Name:         name,
		DisplayName:  displayName,
		PasswordHash: string(passwordHash),
		Roles:        roles,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "user name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}
