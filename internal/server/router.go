package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ddrslabs/matching-backend/internal/http/handlers"
)

type RouterConfig struct {
	MatchingHandler *handlers.MatchingHandler
	AllowOrigins    []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/matching")
	{
		api.POST("/requests", cfg.MatchingHandler.Submit)
		api.GET("/requests", cfg.MatchingHandler.ListRequests)
		api.GET("/requests/:id", cfg.MatchingHandler.GetStatus)
		api.GET("/requests/:id/recommendations", cfg.MatchingHandler.GetRecommendations)
		api.GET("/requests/:id/exchanges", cfg.MatchingHandler.GetExchanges)
		api.GET("/models", cfg.MatchingHandler.ListModels)
		api.GET("/status", cfg.MatchingHandler.SystemStatus)
	}

	return router
}
