package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/repository"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
)

type mockAuthRepo struct {
	user              *models.User
	findErr           error
	updatePasswordErr error
}

func (m *mockAuthRepo) FindByName(ctx context.Context, name string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.user == nil || m.user.Name != name {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	m.user.PasswordHash = passwordHash
	return nil
}

type sessionMembersStub map[repository.HistoryKind][]string

func (s sessionMembersStub) Members(ctx context.Context, sessionID string, kind repository.HistoryKind) ([]string, error) {
	if sessionID != "sess-1" {
		return nil, nil
	}
	return s[kind], nil
}

func newAuthRepo(t *testing.T) *mockAuthRepo {
	t.Helper()
	password, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockAuthRepo{user: &models.User{
		ID:           "123",
		Name:         "hanako",
		DisplayName:  "Hanako",
		PasswordHash: string(password),
		Roles:        []models.RoleName{models.RoleStudent},
	}}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newAuthRepo(t)
	sessions := sessionMembersStub{
		repository.HistoryAccess:  {"f1", "f2"},
		repository.HistoryPreview: {"f2"},
	}
	history := &historySchedulerStub{}
	svc := NewAuthService(repo, sessions, history, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "research-archive",
	})

	res, err := svc.Login(context.Background(), models.LoginRequest{Name: " hanako ", Password: "password", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "Hanako", res.User.DisplayName)

	require.Len(t, history.entries, 2)
	assert.Equal(t, repository.HistoryAccess, history.entries[0].Kind)
	assert.Equal(t, []string{"f1", "f2"}, history.entries[0].FileIDs)
	assert.Equal(t, "123", history.entries[1].UserID)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "123", claims.UserID)
	assert.Equal(t, "research-archive", claims.Issuer)
	assert.False(t, claims.IsAdmin())
}

func TestAuthServiceLoginInvalidCredentials(t *testing.T) {
	svc := NewAuthService(newAuthRepo(t), nil, nil, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret"})

	_, err := svc.Login(context.Background(), models.LoginRequest{Name: "hanako", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Name: "nobody", Password: "password"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Name: "", Password: "password"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	repo := newAuthRepo(t)
	repo.findErr = errors.New("connection reset")
	svc := NewAuthService(repo, nil, nil, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret"})

	_, err := svc.Login(context.Background(), models.LoginRequest{Name: "hanako", Password: "password"})
	assertAppErrorCode(t, err, "INTERNAL_ERROR")
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newAuthRepo(t)
	svc := NewAuthService(repo, nil, nil, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret"})
	ctx := context.Background()

	err := svc.ChangePassword(ctx, "123", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpassword"})
	assertAppErrorCode(t, err, "FORBIDDEN")

	err = svc.ChangePassword(ctx, "123", models.ChangePasswordRequest{OldPassword: "password", NewPassword: "short"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	require.NoError(t, svc.ChangePassword(ctx, "123", models.ChangePasswordRequest{OldPassword: "password", NewPassword: "newpassword"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.user.PasswordHash), []byte("newpassword")))
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(newAuthRepo(t), nil, nil, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Minute})
	other := NewAuthService(newAuthRepo(t), nil, nil, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Minute})

	res, err := other.Login(context.Background(), models.LoginRequest{Name: "hanako", Password: "password"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.AccessToken)
	assertAppErrorCode(t, err, "UNAUTHORIZED")

	_, err = svc.ValidateToken("not-a-token")
	assertAppErrorCode(t, err, "UNAUTHORIZED")
}
