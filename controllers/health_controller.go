package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ok",
		"message":   "Service is healthy",
		"timestamp": time.Now().Unix(),
		"store":     "ok",
		"websocket": gin.H{
			"enabled": true,
			"stats":   h.hub.Stats(),
		},
	}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn("health check: store ping failed", "error", err)
		response["store"] = "error: " + err.Error()
		response["status"] = "degraded"
		c.JSON(http.StatusInternalServerError, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
