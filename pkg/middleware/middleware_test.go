package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"persona-nft/backend/pkg/errors"
	"persona-nft/backend/pkg/jwt"
	"persona-nft/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_Returns429(t *testing.T) {
	rl := NewRateLimiter(logger.Discard(), RateLimiterOptions{Limit: 1, Burst: 1})

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeRateLimitExceeded)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(logger.Discard(), RateLimiterOptions{ExpiryDuration: time.Minute})
	rl.getLimiter("a")
	rl.prune(time.Now().Add(2 * time.Minute))
	assert.Empty(t, rl.clients)
}

func TestWalletAuth(t *testing.T) {
	svc, err := jwt.NewService("secret", time.Hour)
	require.NoError(t, err)
	token, _, err := svc.GenerateToken("0xABC", 43113)
	require.NoError(t, err)

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.GET("/", WalletAuth(svc, logger.Discard()), func(c *gin.Context) {
		wallet, ok := WalletFromContext(c)
		assert.True(t, ok)
		c.String(http.StatusOK, wallet)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeAuthRequired)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeInvalidToken)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xabc", w.Body.String())
}

func TestConnectGuard(t *testing.T) {
	handler := func(c *gin.Context) { c.Status(http.StatusOK) }
	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.POST("/guarded", ConnectGuard("operator"), handler)
	r.POST("/open", ConnectGuard(""), handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/guarded", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), errors.CodeAuthRequired)

	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(ConnectSecretHeader, "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(ConnectSecretHeader, "operator")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/open", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
