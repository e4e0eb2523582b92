package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cinematch/cinematch-backend/internal/clients/mlservice"
)

type HealthcheckHandler struct {
	db       *gorm.DB
	mlClient mlservice.Client
}

func NewHealthcheckHandler(db *gorm.DB, mlClient mlservice.Client) *HealthcheckHandler {
	return &HealthcheckHandler{db: db, mlClient: mlClient}
}

// Healthz reports liveness plus dependency reachability. The response is
// 200 as long as postgres answers; downstream services only color the
// payload.
func (hh *HealthcheckHandler) Healthz(c *gin.Context) {
	dbHealthy := false
	if hh.db != nil {
		if sqlDB, err := hh.db.DB(); err == nil {
			dbHealthy = sqlDB.PingContext(c.Request.Context()) == nil
		}
	}
	if !dbHealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": false,
		})
		return
	}

	RespondOK(c, gin.H{
		"status":     "healthy",
		"database":   true,
		"ml_service": hh.mlClient.IsHealthy(c.Request.Context()),
	})
}
