package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/channel"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/metrics"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/recurrence"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/repository"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
)

// Dispatch failure reasons recorded in scheduled message logs
var (
	ErrAPIKeyNotFound   = errors.New("API key not found for team")
	ErrNotAuthenticated = errors.New("WhatsApp is not authenticated")
	ErrSendFailed       = errors.New("Failed to send message")
)

// DefaultSpec runs the dispatcher once a minute
const DefaultSpec = "* * * * *"

// Store is the persistence the dispatcher needs
type Store interface {
	ListDueScheduledMessages(ctx context.Context, now time.Time) ([]*domain.ScheduledMessage, error)
	AppendScheduledMessageLog(ctx context.Context, log *domain.ScheduledMessageLog) error
	UpdateScheduledMessage(ctx context.Context, id string, update domain.ScheduledMessageUpdate) error
}

// CredentialResolver returns a team's channel credentials
type CredentialResolver interface {
	Resolve(ctx context.Context, teamID string) (*domain.ChannelCredentials, error)
}

// EventPublisher receives a message.sent event for every successful dispatch
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// MessageScheduler polls for due scheduled messages and dispatches them through the gateway
type MessageScheduler struct {
	cron        *cron.Cron
	store       Store
	credentials CredentialResolver
	gateway     channel.Gateway
	events      EventPublisher
	log         *logger.Logger
	now         func() time.Time
	cancel      context.CancelFunc
}

// NewMessageScheduler creates a dispatcher that ticks on the given cron spec
func NewMessageScheduler(spec string, store Store, credentials CredentialResolver, gateway channel.Gateway, log *logger.Logger) (*MessageScheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}

	cl := cronLogger{log: log}
	s := &MessageScheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		store:       store,
		credentials: credentials,
		gateway:     gateway,
		log:         log,
		now:         time.Now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Tick(ctx, s.now()); err != nil {
			s.log.Error("Scheduler tick failed", "error", err)
		}
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", spec, err)
	}

	return s, nil
}

// SetEventPublisher enables message.sent events. Call before Start.
func (s *MessageScheduler) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// Start starts the cron loop
func (s *MessageScheduler) Start() {
	s.log.Info("Starting message scheduler")
	s.cron.Start()
}

// Stop stops the cron loop and waits for a running tick to finish
func (s *MessageScheduler) Stop() {
	s.log.Info("Stopping message scheduler")
	<-s.cron.Stop().Done()
	s.cancel()
}

// Tick processes every message due at now and returns how many were processed.
// Failures of individual messages are recorded and never abort the batch.
func (s *MessageScheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := s.store.ListDueScheduledMessages(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due scheduled messages: %w", err)
	}
	metrics.ScheduledMessagesDue.Set(float64(len(due)))

	if len(due) == 0 {
		return 0, nil
	}
	s.log.Info("Processing scheduled messages", "count", len(due))

	for _, msg := range due {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		s.process(ctx, msg, now)
	}
	return len(due), nil
}

// process dispatches one message and records the outcome
func (s *MessageScheduler) process(ctx context.Context, msg *domain.ScheduledMessage, now time.Time) {
	// a cancel or edit that lands while the message is in flight wins
	expected := domain.ScheduledStatusPending
	update := domain.ScheduledMessageUpdate{ExpectStatus: &expected, UpdatedAt: now}

	var next time.Time
	var err error
	if msg.Recurring {
		next, err = recurrence.NextTrigger(now, msg.RecurrencePattern, msg.RecurrenceConfig)
	}
	if err == nil {
		err = s.dispatch(ctx, msg)
	} else {
		// Without a valid recurrence the message can never fire again
		failed := domain.ScheduledStatusFailed
		update.Status = &failed
	}

	entry := &domain.ScheduledMessageLog{
		ScheduledMessageID: msg.ID,
		Status:             domain.DispatchSuccess,
		CreatedAt:          now,
	}
	if err != nil {
		entry.Status = domain.DispatchFailed
		entry.Error = err.Error()
		s.log.Warn("Scheduled message dispatch failed", "id", msg.ID, "team_id", msg.TeamID, "error", err)
	}
	metrics.ScheduledDispatches.WithLabelValues(string(entry.Status)).Inc()

	if logErr := s.store.AppendScheduledMessageLog(ctx, entry); logErr != nil {
		s.log.Error("Failed to append scheduled message log", "id", msg.ID, "error", logErr)
	}

	switch {
	case update.Status != nil:
		// invalid recurrence, already marked failed
	case msg.Recurring:
		pending := domain.ScheduledStatusPending
		update.Status = &pending
		update.NextRun = &next
	case err != nil:
		failed := domain.ScheduledStatusFailed
		update.Status = &failed
	default:
		sent := domain.ScheduledStatusSent
		update.Status = &sent
	}

	updErr := s.store.UpdateScheduledMessage(ctx, msg.ID, update)
	switch {
	case errors.Is(updErr, repository.ErrStatusChanged):
		s.log.Info("Scheduled message changed during dispatch, leaving it as is", "id", msg.ID, "team_id", msg.TeamID)
	case updErr != nil:
		s.log.Error("Failed to update scheduled message", "id", msg.ID, "error", updErr)
		return
	}

	if err == nil {
		s.log.Info("Dispatched scheduled message", "id", msg.ID, "team_id", msg.TeamID, "recurring", msg.Recurring)
		s.publishSent(ctx, msg, now)
	}
}

func (s *MessageScheduler) publishSent(ctx context.Context, msg *domain.ScheduledMessage, now time.Time) {
	if s.events == nil {
		return
	}
	event := domain.Event{
		Type:   domain.EventMessageSent,
		TeamID: msg.TeamID,
		Data: map[string]any{
			"scheduled_message_id": msg.ID,
			"phone_number":         msg.PhoneNumber,
			"message":              msg.Message,
			"recurring":            msg.Recurring,
		},
		Timestamp: now,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish message.sent event", "id", msg.ID, "error", err)
	}
}

// dispatch sends msg through the gateway. Panics are converted to errors.
func (s *MessageScheduler) dispatch(ctx context.Context, msg *domain.ScheduledMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while dispatching: %v", r)
		}
	}()

	creds, err := s.credentials.Resolve(ctx, msg.TeamID)
	if errors.Is(err, channel.ErrCredentialsNotFound) {
		return ErrAPIKeyNotFound
	}
	if err != nil {
		return err
	}

	if !s.gateway.IsAuthenticated(ctx) {
		return ErrNotAuthenticated
	}

	sent, err := s.gateway.SendMessage(ctx, msg.PhoneNumber, msg.Message, *creds)
	if err != nil {
		return err
	}
	if !sent {
		return ErrSendFailed
	}
	return nil
}
