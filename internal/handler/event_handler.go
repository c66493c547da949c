package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/middleware"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/service"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

// EventHandler accepts domain events over HTTP and fans them out to webhooks
type EventHandler struct {
	webhooks *service.WebhookService
	log      *logger.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(webhooks *service.WebhookService, log *logger.Logger) *EventHandler {
	return &EventHandler{
		webhooks: webhooks,
		log:      log,
	}
}

// TriggerEvent enqueues deliveries for the event and returns without waiting for them
func (h *EventHandler) TriggerEvent(c *gin.Context) {
	var req domain.TriggerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	n, err := h.webhooks.Trigger(c.Request.Context(), middleware.GetTeamID(c), req.Event, req.Data)
	if err != nil {
		respondError(c, h.log, "Failed to trigger event", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "Event accepted",
		"deliveries": n,
	})
}
