package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth reports liveness and backing-store reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
