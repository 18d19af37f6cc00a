package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/shopadmin/internal/database"
	"github.com/charlesng35/shopadmin/internal/monitoring"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
	"github.com/charlesng35/shopadmin/pkg/response"
)

// Health returns a simple status payload useful for liveness checks. When db is set the
// database connection is pinged as well.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := database.PingContext(requestContext(c), db); err != nil {
				response.Error(c, appErrors.New("UNAVAILABLE", "Database unavailable", http.StatusServiceUnavailable).WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, "OK", gin.H{"status": "ok"})
	}
}

// Readiness reports every registered dependency probe. Degraded dependencies still
// answer 200; any probe that is down answers 503.
func Readiness(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))
		status := http.StatusOK
		if report.Status == monitoring.StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
