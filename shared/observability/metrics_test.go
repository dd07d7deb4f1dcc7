package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Exposition(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m, err := NewMetrics()
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	m.MintFinished("success")
	m.ChatReply("QUOTA_EXCEEDED")
	m.SessionOpened()
	m.DirectoryRecord("placeholder")
	m.Pinned(context.Background(), "image", 1024, 200*time.Millisecond, nil)
	m.Pinned(context.Background(), "metadata", 0, time.Second, errors.New("boom"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",route="/ping",status="200"} 1`)
	assert.Contains(t, body, `character_mints_total{outcome="success"} 1`)
	assert.Contains(t, body, `chat_replies_total{outcome="QUOTA_EXCEEDED"} 1`)
	assert.Contains(t, body, `chat_sessions_active 1`)
	assert.Contains(t, body, `directory_records_total{kind="placeholder"} 1`)
	assert.Contains(t, body, "pinning_uploaded_bytes")
}
