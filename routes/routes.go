package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/scholar-ai-backend/controllers"
	"github.com/vnkhanh/scholar-ai-backend/logger"
	"github.com/vnkhanh/scholar-ai-backend/middleware"
	"github.com/vnkhanh/scholar-ai-backend/ws"
)

type Options struct {
	CORSOrigins []string
	// UploadLimiter throttles POST /api/upload. Nil disables throttling.
	UploadLimiter middleware.Limiter
	Log           *logger.Logger
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:              []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:              []string{"Origin", "Content-Type", "Authorization", controllers.APIKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:             []string{"Content-Length", "Content-Disposition", "X-Audio-Duration", middleware.RequestIDHeader},
		OptionsResponseStatusCode: http.StatusOK,
		MaxAge:                    12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func SetupRouter(h *controllers.Handler, hub *ws.Hub, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(opts.Log), gin.Recovery(), cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", h.HealthCheck)
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "Scholar AI backend"})
	})

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/models", h.ListModels)

		api.POST("/upload", middleware.RateLimit(opts.UploadLimiter, "upload", opts.Log), h.UploadGuide)

		api.GET("/guides", h.ListGuides)
		api.GET("/guide/:id", h.GetGuide)

		api.PATCH("/guide", h.UpdateGuide)
		api.POST("/guide", h.UpdateGuide)
		api.POST("/updateGuide", h.UpdateGuide)

		api.DELETE("/guide/delete", h.DeleteGuide)
		api.POST("/guide/delete", h.DeleteGuide)
		api.POST("/deleteGuide", h.DeleteGuide)
		api.DELETE("/guide/:id", h.DeleteGuideByID)

		api.PUT("/guide/:id/progress", h.UpdateProgress)
		api.POST("/guide/:id/replan", h.ReplanSchedule)
		api.POST("/guide/:id/motivation", h.Motivation)
		api.POST("/guide/:id/quiz/score", h.ScoreQuiz)

		api.GET("/export/:kind/:id", h.ExportGuide)
	}

	wsGroup := r.Group("/ws")
	{
		wsGroup.GET("/guides", hub.HandleGuidesWebSocket)
		wsGroup.GET("/upload/:upload_id", hub.HandleUploadWebSocket)
	}

	return r
}
