package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/not-nullexception/team-classifier/internal/logger"
)

var errNotConnected = errors.New("not connected")

// Check reports the health of one dependency
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	version string
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

func NewHealthHandler(version string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		version: version,
	}
}

// Check handles health check requests. Any failing component degrades the status and
// answers 503 so orchestrators stop routing to the process.
func (h *HealthHandler) Check(c *gin.Context) {
	reqLogger := logger.FromContext(c.Request.Context())

	response := HealthResponse{
		Status:     "UP",
		Timestamp:  time.Now(),
		Version:    h.version,
		Components: make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			reqLogger.Error().Err(err).Str("component", name).Msg("Health check failed")
			response.Status = "DEGRADED"
			response.Components[name] = "DOWN"
			continue
		}
		response.Components[name] = "UP"
	}

	status := http.StatusOK
	if response.Status != "UP" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

// ConnectedCheck adapts a connection flag to a Check
func ConnectedCheck(connected func() bool) Check {
	return func(ctx context.Context) error {
		if !connected() {
			return errNotConnected
		}
		return nil
	}
}
