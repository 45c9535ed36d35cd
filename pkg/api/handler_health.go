package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/gradewire/gradewire/pkg/database"
	"github.com/gradewire/gradewire/pkg/version"
	"github.com/gradewire/gradewire/pkg/worker"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Only the database is checked; external dependencies (telegram, the LLM
// provider) are excluded so an upstream outage does not get this process
// restarted.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		// A degraded (slow but reachable) database still serves traffic.
		checks["database"] = HealthCheck{Status: dbHealth.Status}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:   status,
		Version:  version.GitCommit,
		Database: dbHealth,
		Checks:   checks,
	})
}

// readyHandler handles GET /ready.
// Reports the counters of any attached worker runners; an api-only process
// returns an empty runner map.
func (s *Server) readyHandler(c *echo.Context) error {
	resp := &ReadyResponse{Status: "ready"}
	if len(s.runners) > 0 {
		resp.Runners = make(map[string]worker.Metrics, len(s.runners))
	}
	for name, r := range s.runners {
		resp.Runners[name] = r.Metrics()
	}
	return c.JSON(http.StatusOK, resp)
}
