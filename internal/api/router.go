package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/metrics"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		alerts := api.Group("/alerts", AuthMiddleware(h.verifier))
		alerts.POST("", h.CreateAlert)
		alerts.GET("/:id", h.GetAlert)
		alerts.POST("/:id/resolve", h.ResolveAlert)
		alerts.DELETE("/:id", h.DeleteAlert)

		// Real-time push, authenticated by the gateway after the upgrade
		api.GET("/ws", h.ServeWebSocket)

		// Notifications of the caller
		user := api.Group("/notifications", AuthMiddleware(h.verifier))
		user.GET("", h.GetNotifications)
		user.POST("/:id/read", h.MarkNotificationRead)
		user.DELETE("/:id", h.DeleteNotification)
	}
	return r
}
