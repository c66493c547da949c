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

// ScheduleHandler handles scheduled message requests
type ScheduleHandler struct {
	service *service.SchedulingService
	log     *logger.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(service *service.SchedulingService, log *logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		log:     log,
	}
}

// ScheduleMessage creates a new scheduled message
func (h *ScheduleHandler) ScheduleMessage(c *gin.Context) {
	var req domain.ScheduleMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}
	req.TeamID = middleware.GetTeamID(c)
	req.UserID = middleware.GetUserID(c)

	msg, err := h.service.ScheduleMessage(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, "Failed to schedule message", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message scheduled successfully",
		"data":    msg,
	})
}

// ListScheduledMessages lists the team's scheduled messages with their logs
func (h *ScheduleHandler) ListScheduledMessages(c *gin.Context) {
	var req domain.ListScheduledMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	messages, err := h.service.ListScheduledMessages(c.Request.Context(), middleware.GetTeamID(c), &req)
	if err != nil {
		respondError(c, h.log, "Failed to list scheduled messages", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": messages,
	})
}

// GetScheduledMessage returns one scheduled message with its logs
func (h *ScheduleHandler) GetScheduledMessage(c *gin.Context) {
	msg, err := h.service.GetScheduledMessage(c.Request.Context(), c.Param("id"), middleware.GetTeamID(c))
	if err != nil {
		respondError(c, h.log, "Failed to get scheduled message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": msg})
}

// UpdateScheduledMessage applies a partial update
func (h *ScheduleHandler) UpdateScheduledMessage(c *gin.Context) {
	var req domain.UpdateScheduledMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	msg, err := h.service.UpdateScheduledMessage(c.Request.Context(), c.Param("id"), middleware.GetTeamID(c), &req)
	if err != nil {
		respondError(c, h.log, "Failed to update scheduled message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Message updated successfully",
		"data":    msg,
	})
}

// CancelScheduledMessage cancels a scheduled message that was not sent yet
func (h *ScheduleHandler) CancelScheduledMessage(c *gin.Context) {
	msg, err := h.service.CancelScheduledMessage(c.Request.Context(), c.Param("id"), middleware.GetTeamID(c))
	if err != nil {
		respondError(c, h.log, "Failed to cancel scheduled message", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Message cancelled successfully",
		"data":    msg,
	})
}
