package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/middleware"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/service"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

// WebhookHandler handles webhook management requests
type WebhookHandler struct {
	service *service.WebhookService
	log     *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(service *service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		log:     log,
	}
}

// CreateWebhook registers a webhook for the team
func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req domain.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	req.TeamID = middleware.GetTeamID(c)

	w, err := h.service.CreateWebhook(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, "Failed to create webhook", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Webhook created successfully",
		"data":    w,
	})
}

// ListWebhooks lists the team's webhooks
func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	webhooks, err := h.service.ListWebhooks(c.Request.Context(), middleware.GetTeamID(c))
	if err != nil {
		respondError(c, h.log, "Failed to list webhooks", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": webhooks})
}

// UpdateWebhook applies a partial update
func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	var req domain.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	w, err := h.service.UpdateWebhook(c.Request.Context(), c.Param("id"), middleware.GetTeamID(c), &req)
	if err != nil {
		respondError(c, h.log, "Failed to update webhook", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Webhook updated successfully",
		"data":    w,
	})
}

// DeleteWebhook removes a webhook
func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	if err := h.service.DeleteWebhook(c.Request.Context(), c.Param("id"), middleware.GetTeamID(c)); err != nil {
		respondError(c, h.log, "Failed to delete webhook", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Webhook deleted successfully"})
}

// GetWebhookLogs returns the most recent delivery logs
func (h *WebhookHandler) GetWebhookLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errors.NewValidationError("limit must be a positive integer", err))
			return
		}
		limit = n
	}

	logs, err := h.service.ListWebhookLogs(c.Request.Context(), c.Param("id"), middleware.GetTeamID(c), limit)
	if err != nil {
		respondError(c, h.log, "Failed to get webhook logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// TestWebhook sends a test event and reports the delivery outcome
func (h *WebhookHandler) TestWebhook(c *gin.Context) {
	entry, err := h.service.TestWebhook(c.Request.Context(), c.Param("id"), middleware.GetTeamID(c))
	if err != nil {
		respondError(c, h.log, "Failed to test webhook", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Test webhook sent",
		"data":    entry,
	})
}
