package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/handler"
	"github.com/noah-isme/research-archive-api/internal/middleware"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/service"
	"github.com/noah-isme/research-archive-api/pkg/config"
	"github.com/noah-isme/research-archive-api/pkg/markdown"
)

const testSecret = "route-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		Session:   config.SessionConfig{CookieName: "sid", TTL: time.Minute},
	}
	metrics := service.NewMetricsService()
	authSvc := service.NewAuthService(nil, nil, nil, nil, zap.NewNop(), service.AuthConfig{AccessTokenSecret: testSecret, AccessTokenExpiry: time.Hour})
	return newRouter(cfg, zap.NewNop(), metrics, authSvc, routeHandlers{
		auth:       handler.NewAuthHandler(nil),
		users:      handler.NewUserHandler(nil),
		home:       handler.NewHomeHandler(nil),
		search:     handler.NewSearchHandler(nil, nil),
		studies:    handler.NewStudyHandler(nil, nil),
		files:      handler.NewFileHandler(nil),
		tags:       handler.NewTagHandler(nil),
		news:       handler.NewNewsHandler(nil, markdown.New()),
		moderation: handler.NewModerationHandler(nil),
		metrics:    handler.NewMetricsHandler(metrics, nil),
	})
}

func signToken(t *testing.T, roles ...models.RoleName) string {
	t.Helper()
	claims := &models.JWTClaims{
		UserID: "u1",
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func serve(r *gin.Engine, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "", "").Code)
}

func TestRouterIssuesSessionOnPublicRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, http.MethodPost, "/api/v1/convert", "", `{"markdown":"*hi*"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.SessionHeader))
	assert.Contains(t, rec.Body.String(), "<em>hi</em>")
}

func TestRouterGuards(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/studies", "", `{}`).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/me", "garbage", "").Code)

	student := signToken(t, models.RoleStudent)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/admin/moderation", student, `{}`).Code)

	admin := signToken(t, models.RoleAdmin)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/v1/admin/stats", admin, "").Code)
}
