package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/database"
)

// HealthStatus represents the health status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult represents the result of one dependency check
type HealthCheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency,omitempty"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status     HealthStatus                 `json:"status"`
	Version    string                       `json:"version,omitempty"`
	Uptime     string                       `json:"uptime,omitempty"`
	Checks     map[string]HealthCheckResult `json:"checks,omitempty"`
	ReportedAt time.Time                    `json:"reported_at"`
}

// HealthHandler provides liveness and readiness probes
type HealthHandler struct {
	db        database.DB
	version   string
	startTime time.Time
	mu        sync.RWMutex
	ready     bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db database.DB, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady marks the service as ready to receive traffic
func (h *HealthHandler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Register registers health routes
func (h *HealthHandler) Register(g *echo.Group) {
	g.GET("/live", h.Liveness)
	g.GET("/ready", h.Readiness)
}

// Liveness reports whether the process is running
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:     StatusHealthy,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		ReportedAt: time.Now().UTC(),
	})
}

// Readiness reports whether the service can reach its dependencies
func (h *HealthHandler) Readiness(c echo.Context) error {
	h.mu.RLock()
	ready := h.ready
	h.mu.RUnlock()

	response := HealthResponse{
		Status:     StatusHealthy,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Checks:     map[string]HealthCheckResult{},
		ReportedAt: time.Now().UTC(),
	}

	if !ready {
		response.Status = StatusUnhealthy
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	response.Checks["database"] = h.checkDatabase(c.Request().Context())
	for _, check := range response.Checks {
		if check.Status != StatusHealthy {
			response.Status = StatusUnhealthy
			return c.JSON(http.StatusServiceUnavailable, response)
		}
	}

	return c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		return HealthCheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return HealthCheckResult{Status: StatusHealthy, Latency: time.Since(start).String()}
}
