package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-nft/backend/internal/chat"
	"persona-nft/backend/internal/models"
	"persona-nft/backend/internal/wallet"
	"persona-nft/backend/pkg/config"
	"persona-nft/backend/pkg/di"
	"persona-nft/backend/pkg/health"
	"persona-nft/backend/pkg/jwt"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/middleware"
	"persona-nft/backend/shared/observability"
)

const schema = `openapi: 3.0.3
info:
  title: test
  version: "1"
paths:
  /api/v1/chat/sessions:
    post:
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [characterId]
              properties:
                characterId:
                  type: string
                  pattern: '^[0-9]+$'
      responses:
        "201":
          description: created
`

type characters map[string]models.Character

func (c characters) GetCharacter(_ context.Context, id string) (models.Character, error) {
	return c[id], nil
}

func newTestRouter(t *testing.T, schemaPath string) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	cfg := config.Load()
	cfg.Security.AllowedOrigins = []string{"https://app.example.com"}
	cfg.OpenAPISchemaPath = schemaPath

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	jwtService, err := jwt.NewService("secret", time.Hour)
	require.NoError(t, err)

	sessions := chat.NewManager(characters{"1": {ID: "1", Name: "Aria"}}, nil, chat.ManagerOptions{}, log)
	t.Cleanup(sessions.Shutdown)

	container := &di.Container{
		Config:      cfg,
		Logger:      log,
		Metrics:     metrics,
		JWTService:  jwtService,
		Wallet:      wallet.NewAdapter(wallet.NewMockProvider(common.HexToAddress("0x1234567890123456789012345678901234567890")), log),
		Sessions:    sessions,
		Health:      health.NewChecker(log, time.Minute),
		RateLimiter: middleware.NewRateLimiter(log, middleware.DefaultRateLimiterOptions()),
	}

	r := New(container)
	r.SetupRoutes()
	return r
}

func serve(r *Router, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthRoutes(t *testing.T) {
	r := newTestRouter(t, "")

	for _, path := range []string{"/health", "/api/health", "/api/v1/health"} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestMetricsRoute(t *testing.T) {
	r := newTestRouter(t, "")

	serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",route="/api/v1/wallet",status="200"} 1`)
}

func TestWalletConnectThroughRouter(t *testing.T) {
	r := newTestRouter(t, "")

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/connect", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0x1234567890123456789012345678901234567890")
}

func TestCORS(t *testing.T) {
	r := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/characters", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(t, "")

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenAPIValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(schema), 0o600))
	r := newTestRouter(t, path)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions", strings.NewReader(`{"characterId":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions", strings.NewReader(`{"characterId":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(r, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAPIValidation_MissingSchema(t *testing.T) {
	r := newTestRouter(t, filepath.Join(t.TempDir(), "missing.yaml"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/sessions", strings.NewReader(`{"characterId":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusCreated, serve(r, req).Code)
}
