package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/repository"
)

type mockUserRepo struct {
	users   map[string]*models.User
	granted []string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByName(ctx context.Context, name string) (*models.User, error) {
	for _, u := range m.users {
		if u.Name == name {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Name == user.Name {
			return repository.ErrDuplicate
		}
	}
	user.ID = "user-" + user.Name
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) GrantRole(ctx context.Context, userID string, role models.RoleName) error {
	m.granted = append(m.granted, userID)
	m.users[userID].Roles = append(m.users[userID].Roles, role)
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.users[id].PasswordHash = passwordHash
	return nil
}

type userStudiesStub struct {
	authored []models.StudyRecord
	helpful  []models.StudyRecord
	admin    bool
}

func (s *userStudiesStub) ListByAuthor(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error) {
	s.admin = admin
	return s.authored, len(s.authored), nil
}

func (s *userStudiesStub) ListHelpfulByUser(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.StudyRecord, int, error) {
	return s.helpful, len(s.helpful), nil
}

type visitedStub struct {
	files []models.File
}

func (s visitedStub) ListVisitedFiles(ctx context.Context, userID string, admin bool, page, pageSize int) ([]models.File, int, error) {
	return s.files, len(s.files), nil
}

func newUserServiceForTest(repo *mockUserRepo, studies *userStudiesStub, visited visitedStub) *UserService {
	return NewUserService(repo, studies, &fileListStub{}, visited, validator.New(), zap.NewNop())
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	svc := newUserServiceForTest(repo, &userStudiesStub{}, visitedStub{})
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserRequest{Name: "taro", Password: "password123", Admin: true}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "taro", user.DisplayName)
	assert.Equal(t, []models.RoleName{models.RoleStudent, models.RoleAdmin}, user.Roles)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("password123")))

	_, err = svc.Create(ctx, CreateUserRequest{Name: "taro", Password: "password123"}, adminClaims())
	assertAppErrorCode(t, err, "CONFLICT")

	_, err = svc.Create(ctx, CreateUserRequest{Name: "jiro", Password: "short"}, adminClaims())
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.Create(ctx, CreateUserRequest{Name: "jiro", Password: "password123"}, userClaims("u1"))
	assertAppErrorCode(t, err, "FORBIDDEN")
}

func TestUserServiceEnsureAdmin(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "existing", Roles: []models.RoleName{models.RoleStudent}},
	}}
	svc := newUserServiceForTest(repo, &userStudiesStub{}, visitedStub{})
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "", "ignored"))
	assert.Len(t, repo.users, 1)

	require.NoError(t, svc.EnsureAdmin(ctx, "existing", "password123"))
	assert.Equal(t, []string{"u1"}, repo.granted)
	require.NoError(t, svc.EnsureAdmin(ctx, "existing", "password123"))
	assert.Len(t, repo.granted, 1)

	require.NoError(t, svc.EnsureAdmin(ctx, "root", "password123"))
	created, err := repo.FindByName(ctx, "root")
	require.NoError(t, err)
	assert.True(t, created.HasRole(models.RoleAdmin))
}

func TestUserServiceMyPageHidesGraved(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u1": {ID: "u1", Name: "hanako", DisplayName: "Hanako"}}}
	graved := studyRecord("s2", "graved")
	graved.GraveState = graveState("spam", false)
	studies := &userStudiesStub{
		authored: []models.StudyRecord{studyRecord("s1", "mine"), graved},
		helpful:  []models.StudyRecord{graved},
	}
	visited := visitedStub{files: []models.File{
		{ID: "f1", StudyID: "s1"},
		{ID: "f2", StudyID: "s2", ParentGraved: true},
	}}
	svc := newUserServiceForTest(repo, studies, visited)

	page, err := svc.MyPage(context.Background(), userClaims("u1"))
	require.NoError(t, err)
	assert.Equal(t, "Hanako", page.User.DisplayName)
	require.Len(t, page.Studies, 1)
	assert.Equal(t, "s1", page.Studies[0].ID)
	assert.Empty(t, page.HelpfulStudies)
	require.Len(t, page.VisitedFiles, 1)
	assert.Equal(t, "f1", page.VisitedFiles[0].ID)
	assert.False(t, studies.admin)

	_, err = svc.MyPage(context.Background(), nil)
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestUserServiceMyStudiesPaging(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	studies := &userStudiesStub{authored: []models.StudyRecord{studyRecord("s1", "mine")}}
	svc := newUserServiceForTest(repo, studies, visitedStub{})

	summaries, pagination, err := svc.MyStudies(context.Background(), adminClaims(), 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, myListPerPage, pagination.PageSize)
	assert.True(t, studies.admin)
}
