package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency health check
type Pinger func(ctx context.Context) error

// HealthInfo describes the running service
type HealthInfo struct {
	Network           string `json:"network"`
	PackageID         string `json:"packageId"`
	ProcessorObjectID string `json:"processorObjectId"`
	AdminEnabled      bool   `json:"adminEnabled"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	info      HealthInfo
	checks    map[string]Pinger
	startTime time.Time
}

// NewHealthHandler creates a health handler. checks may be empty; optional
// dependencies register only when they are configured.
func NewHealthHandler(info HealthInfo, checks map[string]Pinger) *HealthHandler {
	if checks == nil {
		checks = map[string]Pinger{}
	}
	return &HealthHandler{info: info, checks: checks, startTime: time.Now()}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	message := "SuiFlow Payment API is running"
	if !healthy {
		status = http.StatusServiceUnavailable
		message = "SuiFlow Payment API is degraded"
	}

	c.JSON(status, gin.H{
		"success":   healthy,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"service":   h.info,
		"checks":    results,
	})
}
