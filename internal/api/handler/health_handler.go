package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck probes one downstream dependency
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	logger  *slog.Logger
	service string
	checks  []ReadinessCheck
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(logger *slog.Logger, service string, checks []ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		service: service,
		checks:  checks,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
	})
}

// Ready handles GET /health/ready. Any failing dependency turns the
// response into a 503 so load balancers stop routing here.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warn("Readiness check failed",
				slog.String("check", check.Name),
				slog.String("error", err.Error()),
			)
			results[check.Name] = gin.H{"status": "unhealthy", "error": err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = gin.H{"status": "healthy"}
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": results,
	})
}
