package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyshare/polyshare-api/internal/models"
	appErrors "github.com/polyshare/polyshare-api/pkg/errors"
	"github.com/polyshare/polyshare-api/pkg/response"
)

type authServiceMock struct {
	registerResp *models.AuthResponse
	registerErr  error
	loginResp    *models.AuthResponse
	loginErr     error
	profile      *models.UserProfile
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return m.registerResp, m.registerErr
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserProfile, error) {
	return m.profile, nil
}

func TestRegisterCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{
		registerResp: &models.AuthResponse{Token: "tok", User: models.UserInfo{ID: "u1"}},
	})

	payload, _ := json.Marshal(models.RegisterRequest{Email: "a@b.com", Password: "sekret1", Username: "alice"})
	c, w := newGinContext(http.MethodPost, "/auth/register", payload)

	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRegisterConflictOnTakenEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{registerErr: appErrors.ErrEmailTaken})

	payload, _ := json.Marshal(models.RegisterRequest{Email: "a@b.com", Password: "sekret1", Username: "alice"})
	c, w := newGinContext(http.MethodPost, "/auth/register", payload)

	handler.Register(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, envelope.Error.Code)
}

func TestLoginInvalidJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte("{"))
	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	payload, _ := json.Marshal(models.LoginRequest{Email: "a@b.com", Password: "wrong"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutNoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodPost, "/auth/logout", nil)
	asUser(c, "u1", models.RoleUser)

	handler.Logout(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestMeRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{profile: &models.UserProfile{User: models.User{ID: "u1", Username: "alice", KarmaPoints: 12}}})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	asUser(c, "u1", models.RoleUser)

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
}
