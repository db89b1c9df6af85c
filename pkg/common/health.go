package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns a health check handler with optional dependency checks.
// Each check function is invoked per request; any failure flips the overall
// status to unhealthy and the response to 503.
func HealthCheck(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		var checkResults map[string]string

		if len(checks) > 0 {
			checkResults = make(map[string]string, len(checks))
			for name, checkFunc := range checks {
				if err := checkFunc(); err != nil {
					checkResults[name] = "unhealthy: " + err.Error()
					status = "unhealthy"
				} else {
					checkResults[name] = "healthy"
				}
			}
		}

		statusCode := http.StatusOK
		if status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, HealthResponse{
			Status:  status,
			Service: serviceName,
			Version: version,
			Checks:  checkResults,
		})
	}
}
