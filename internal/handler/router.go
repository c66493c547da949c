package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/middleware"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the HTTP handlers served by the router
type Handlers struct {
	Schedule *ScheduleHandler
	Webhook  *WebhookHandler
	Event    *EventHandler
	Settings *SettingsHandler
}

// NewRouter builds the gin engine with health, metrics and the team-scoped API.
// ready may be nil when there is nothing to check.
func NewRouter(h Handlers, rateLimiter *middleware.TeamRateLimiter, ready Pinger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TeamMiddleware())
	v1.Use(middleware.RateLimitMiddleware(rateLimiter))
	{
		scheduled := v1.Group("/scheduled")
		{
			scheduled.POST("", h.Schedule.ScheduleMessage)
			scheduled.GET("", h.Schedule.ListScheduledMessages)
			scheduled.GET("/:id", h.Schedule.GetScheduledMessage)
			scheduled.PUT("/:id", h.Schedule.UpdateScheduledMessage)
			scheduled.POST("/:id/cancel", h.Schedule.CancelScheduledMessage)
			scheduled.DELETE("/:id", h.Schedule.CancelScheduledMessage)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("", h.Webhook.CreateWebhook)
			webhooks.GET("", h.Webhook.ListWebhooks)
			webhooks.PUT("/:id", h.Webhook.UpdateWebhook)
			webhooks.DELETE("/:id", h.Webhook.DeleteWebhook)
			webhooks.GET("/:id/logs", h.Webhook.GetWebhookLogs)
			webhooks.POST("/:id/test", h.Webhook.TestWebhook)
		}

		v1.POST("/events", h.Event.TriggerEvent)
		v1.PUT("/settings/api-key", h.Settings.SaveAPIKey)
	}

	return router
}
