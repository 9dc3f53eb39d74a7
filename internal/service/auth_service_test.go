package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/polyshare/polyshare-api/internal/models"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
)

type mockUserRepo struct {
	userByEmail    *models.User
	profile        *models.UserProfile
	findByEmailErr error
	emailTaken     bool
	created        *models.User
	createErr      error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.userByEmail, nil
}

func (m *mockUserRepo) FindProfileByID(ctx context.Context, id string) (*models.UserProfile, error) {
	if m.profile == nil {
		return nil, sql.ErrNoRows
	}
	return m.profile, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emailTaken, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "generated"
	m.created = user
	return nil
}

type mockCatalogChecker struct {
	universityExists bool
}

func (m *mockCatalogChecker) UniversityExists(ctx context.Context, id string) (bool, error) {
	return m.universityExists, nil
}

func newAuthService(users *mockUserRepo, catalog *mockCatalogChecker) *AuthService {
	return NewAuthService(users, catalog, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		Issuer:      "polyshare-api",
	})
}

func TestRegisterIssuesTokenAndStartsAtZeroKarma(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newAuthService(repo, &mockCatalogChecker{})

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "sekret1",
		Username: "newbie",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, 0, res.User.KarmaPoints)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.RoleUser, repo.created.Role)
	assert.NotEqual(t, "sekret1", repo.created.PasswordHash)
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	repo := &mockUserRepo{emailTaken: true}
	svc := newAuthService(repo, &mockCatalogChecker{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "sekret1",
		Username: "dupe",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErr.Code)
}

func TestRegisterRequiresDigitInPassword(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockCatalogChecker{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "nodigits",
		Username: "weak",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRegisterRejectsUnknownUniversity(t *testing.T) {
	uniID := "9f8b5c1e-0000-4000-8000-000000000000"
	svc := newAuthService(&mockUserRepo{}, &mockCatalogChecker{universityExists: false})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:        "new@example.com",
		Password:     "sekret1",
		Username:     "newbie",
		UniversityID: &uniID,
	})
	require.Error(t, err)
}

func TestLoginSuccessAndTokenRoundTrip(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("sekret1"), bcrypt.DefaultCost)
	repo := &mockUserRepo{userByEmail: &models.User{
		ID:           "u1",
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Username:     "user",
		Role:         models.RoleUser,
		KarmaPoints:  10,
	}}
	svc := newAuthService(repo, &mockCatalogChecker{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "sekret1"})
	require.NoError(t, err)
	assert.Equal(t, 10, res.User.KarmaPoints)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("sekret1"), bcrypt.DefaultCost)
	repo := &mockUserRepo{userByEmail: &models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash)}}
	svc := newAuthService(repo, &mockCatalogChecker{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	repo := &mockUserRepo{findByEmailErr: sql.ErrNoRows}
	svc := newAuthService(repo, &mockCatalogChecker{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "sekret1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockCatalogChecker{})

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
}
