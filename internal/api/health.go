package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"persona-nft/backend/pkg/health"
)

// Handler serves the detailed health report
type Handler struct {
	checker  *health.Checker
	sessions func() int
	version  string
	started  time.Time
}

// NewHealthHandler creates a health handler; sessions reports the live chat session count
func NewHealthHandler(checker *health.Checker, sessions func() int, version string) *Handler {
	return &Handler{checker: checker, sessions: sessions, version: version, started: time.Now()}
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status     string             `json:"status"`
	Timestamp  time.Time          `json:"timestamp"`
	Version    string             `json:"version"`
	Uptime     string             `json:"uptime"`
	Sessions   int                `json:"activeSessions"`
	Components []health.Component `json:"components"`
	Memory     memoryStats        `json:"memory"`
}

type memoryStats struct {
	AllocMB  uint64 `json:"allocMb"`
	SysMB    uint64 `json:"sysMb"`
	GCCycles uint32 `json:"gcCycles"`
}

// HealthHandler reports component status, session count and memory use
func (h *Handler) HealthHandler(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := HealthResponse{
		Status:     "ok",
		Timestamp:  time.Now(),
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: h.checker.GetStatus(),
		Memory: memoryStats{
			AllocMB:  mem.Alloc / 1024 / 1024,
			SysMB:    mem.Sys / 1024 / 1024,
			GCCycles: mem.NumGC,
		},
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions()
	}

	status := http.StatusOK
	if !h.checker.IsSystemHealthy() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// RegisterHealthRoutes registers health check related routes
func (h *Handler) RegisterHealthRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthHandler)
}
