package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/recurrence"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/repository"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ScheduledMessageStore is the persistence the scheduling service needs
type ScheduledMessageStore interface {
	CreateScheduledMessage(ctx context.Context, m *domain.ScheduledMessage) error
	GetScheduledMessage(ctx context.Context, id, teamID string) (*domain.ScheduledMessage, error)
	ListScheduledMessages(ctx context.Context, teamID string, filter domain.ScheduledMessageFilter) ([]*domain.ScheduledMessage, error)
	UpdateScheduledMessage(ctx context.Context, id string, update domain.ScheduledMessageUpdate) error
	ListScheduledMessageLogs(ctx context.Context, messageID string) ([]*domain.ScheduledMessageLog, error)
}

// SchedulingService handles scheduled message requests
type SchedulingService struct {
	store ScheduledMessageStore
	log   *logger.Logger
	now   func() time.Time
}

// NewSchedulingService creates a new scheduling service
func NewSchedulingService(store ScheduledMessageStore, log *logger.Logger) *SchedulingService {
	return &SchedulingService{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// ScheduleMessage validates req and persists a new pending message
func (s *SchedulingService) ScheduleMessage(ctx context.Context, req *domain.ScheduleMessageRequest) (*domain.ScheduledMessage, error) {
	if req.TeamID == "" {
		return nil, errors.NewUnauthorizedError("Team is required", nil)
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return nil, errors.NewValidationError("Phone number is required", nil)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.NewValidationError("Message is required", nil)
	}
	if req.ScheduledTime == nil || req.ScheduledTime.IsZero() {
		return nil, errors.NewValidationError("Scheduled time is required", nil)
	}

	msg := &domain.ScheduledMessage{
		TeamID:      req.TeamID,
		UserID:      req.UserID,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Message:     req.Message,
		TemplateID:  req.TemplateID,
		NextRun:     req.ScheduledTime.UTC(),
		Status:      domain.ScheduledStatusPending,
		Recurring:   req.Recurring,
	}

	if req.Recurring {
		if err := recurrence.Validate(req.RecurrencePattern, req.RecurrenceConfig); err != nil {
			return nil, errors.NewValidationError(err.Error(), err)
		}
		msg.RecurrencePattern = req.RecurrencePattern
		if req.RecurrencePattern == domain.RecurrenceCustom {
			cfg := *req.RecurrenceConfig
			msg.RecurrenceConfig = &cfg
		}
	}

	if err := s.store.CreateScheduledMessage(ctx, msg); err != nil {
		s.log.Error("Failed to schedule message", "team_id", req.TeamID, "error", err)
		return nil, errors.NewInternalError("Error scheduling message", err)
	}

	s.log.Info("Message scheduled", "id", msg.ID, "team_id", msg.TeamID, "next_run", msg.NextRun, "recurring", msg.Recurring)
	return msg, nil
}

// CancelScheduledMessage moves a message to cancelled unless it was already sent
func (s *SchedulingService) CancelScheduledMessage(ctx context.Context, id, teamID string) (*domain.ScheduledMessage, error) {
	msg, err := s.load(ctx, id, teamID)
	if err != nil {
		return nil, err
	}

	if msg.Status == domain.ScheduledStatusSent {
		return nil, errors.NewConflictError("Cannot cancel a message that has already been sent", nil)
	}
	if msg.Status == domain.ScheduledStatusCancelled {
		return msg, nil
	}

	current, cancelled := msg.Status, domain.ScheduledStatusCancelled
	update := domain.ScheduledMessageUpdate{ExpectStatus: &current, Status: &cancelled, UpdatedAt: s.now()}
	if err := s.store.UpdateScheduledMessage(ctx, id, update); err != nil {
		return nil, s.storeError("Error cancelling message", err)
	}
	update.Apply(msg)

	s.log.Info("Scheduled message cancelled", "id", id, "team_id", teamID)
	return msg, nil
}

// UpdateScheduledMessage applies a partial update unless the message was already sent
func (s *SchedulingService) UpdateScheduledMessage(ctx context.Context, id, teamID string, req *domain.UpdateScheduledMessageRequest) (*domain.ScheduledMessage, error) {
	msg, err := s.load(ctx, id, teamID)
	if err != nil {
		return nil, err
	}

	if msg.Status == domain.ScheduledStatusSent {
		return nil, errors.NewConflictError("Cannot update a message that has already been sent", nil)
	}

	current := msg.Status
	update := domain.ScheduledMessageUpdate{
		ExpectStatus:      &current,
		Recurring:         req.Recurring,
		RecurrencePattern: req.RecurrencePattern,
		RecurrenceConfig:  req.RecurrenceConfig,
		UpdatedAt:         s.now(),
	}
	if req.Message != nil {
		if strings.TrimSpace(*req.Message) == "" {
			return nil, errors.NewValidationError("Message cannot be empty", nil)
		}
		update.Message = req.Message
	}
	if req.ScheduledTime != nil {
		if req.ScheduledTime.IsZero() {
			return nil, errors.NewValidationError("Scheduled time cannot be empty", nil)
		}
		next := req.ScheduledTime.UTC()
		update.NextRun = &next
	}

	// validate the recurrence the record would end up with
	merged := *msg
	update.Apply(&merged)
	if merged.Recurring {
		if err := recurrence.Validate(merged.RecurrencePattern, merged.RecurrenceConfig); err != nil {
			return nil, errors.NewValidationError(err.Error(), err)
		}
	}

	if err := s.store.UpdateScheduledMessage(ctx, id, update); err != nil {
		return nil, s.storeError("Error updating message", err)
	}

	s.log.Info("Scheduled message updated", "id", id, "team_id", teamID)
	return &merged, nil
}

// GetScheduledMessage returns a team's message joined with its dispatch logs
func (s *SchedulingService) GetScheduledMessage(ctx context.Context, id, teamID string) (*domain.ScheduledMessageWithLogs, error) {
	msg, err := s.load(ctx, id, teamID)
	if err != nil {
		return nil, err
	}
	return s.withLogs(ctx, msg)
}

// ListScheduledMessages lists a team's messages ordered by next run, each joined with its logs
func (s *SchedulingService) ListScheduledMessages(ctx context.Context, teamID string, req *domain.ListScheduledMessagesRequest) ([]*domain.ScheduledMessageWithLogs, error) {
	if req.Status != "" && !req.Status.IsValid() {
		return nil, errors.NewValidationError("Invalid status: "+string(req.Status), nil)
	}
	if req.Offset < 0 {
		return nil, errors.NewValidationError("offset must be >= 0", nil)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	messages, err := s.store.ListScheduledMessages(ctx, teamID, domain.ScheduledMessageFilter{
		Status: req.Status,
		Limit:  limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, errors.NewInternalError("Error fetching scheduled messages", err)
	}

	result := make([]*domain.ScheduledMessageWithLogs, 0, len(messages))
	for _, msg := range messages {
		joined, err := s.withLogs(ctx, msg)
		if err != nil {
			return nil, err
		}
		result = append(result, joined)
	}
	return result, nil
}

func (s *SchedulingService) load(ctx context.Context, id, teamID string) (*domain.ScheduledMessage, error) {
	if id == "" {
		return nil, errors.NewValidationError("Message ID is required", nil)
	}
	msg, err := s.store.GetScheduledMessage(ctx, id, teamID)
	if err != nil {
		return nil, s.storeError("Error fetching scheduled message", err)
	}
	return msg, nil
}

func (s *SchedulingService) withLogs(ctx context.Context, msg *domain.ScheduledMessage) (*domain.ScheduledMessageWithLogs, error) {
	logs, err := s.store.ListScheduledMessageLogs(ctx, msg.ID)
	if err != nil {
		return nil, errors.NewInternalError("Error fetching scheduled message logs", err)
	}
	return &domain.ScheduledMessageWithLogs{ScheduledMessage: msg, Logs: logs}, nil
}

func (s *SchedulingService) storeError(message string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NewNotFoundError("Scheduled message not found", err)
	}
	if stderrors.Is(err, repository.ErrStatusChanged) {
		return errors.NewConflictError("Scheduled message changed while processing the request, retry", err)
	}
	return errors.NewInternalError(message, err)
}
