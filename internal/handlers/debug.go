package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/presence"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, registry *presence.Registry, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/presence", func(c *gin.Context) {
		if registry == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence registry not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"online": registry.Online(), "count": registry.Count()})
	})
}
