package service

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/metrics"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/queue"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/repository"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/webhook"
)

// maxResponseBody caps the response body kept in delivery logs
const maxResponseBody = 64 * 1024

const testWebhookMessage = "This is a test webhook event"

// WebhookStore is the persistence the webhook service needs
type WebhookStore interface {
	CreateWebhook(ctx context.Context, w *domain.Webhook) error
	GetWebhook(ctx context.Context, id string) (*domain.Webhook, error)
	UpdateWebhook(ctx context.Context, id string, update domain.WebhookUpdate) (*domain.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
	ListWebhooksForTeam(ctx context.Context, teamID string) ([]*domain.Webhook, error)
	ListActiveWebhooksForEvent(ctx context.Context, teamID string, event domain.EventType) ([]*domain.Webhook, error)
	AppendWebhookLog(ctx context.Context, log *domain.WebhookLog) error
	ListWebhookLogs(ctx context.Context, webhookID string, limit int) ([]*domain.WebhookLog, error)
}

// WebhookConfig tunes delivery
type WebhookConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	UserAgent string
}

// WebhookService manages webhooks and fans domain events out to them
type WebhookService struct {
	store     WebhookStore
	log       *logger.Logger
	client    *http.Client
	queue     *queue.PriorityQueue
	workers   int
	userAgent string
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	now       func() time.Time
}

// NewWebhookService creates a new webhook service
func NewWebhookService(store WebhookStore, cfg WebhookConfig, log *logger.Logger) *WebhookService {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "WhatsApp-Automation-Webhooks/1.0"
	}

	return &WebhookService{
		store: store,
		log:   log,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		queue:     queue.NewPriorityQueue(cfg.QueueSize),
		workers:   cfg.Workers,
		userAgent: cfg.UserAgent,
		now:       time.Now,
	}
}

// Start launches the delivery workers
func (s *WebhookService) Start() {
	s.startOnce.Do(func() {
		s.log.Info("Starting webhook delivery workers", "workers", s.workers)
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
	})
}

// Stop stops accepting deliveries and waits for queued ones to finish
func (s *WebhookService) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("Stopping webhook delivery workers", "queued", s.queue.Len())
		s.queue.Close()
		s.Start() // drain even if never started
		s.wg.Wait()
	})
}

// worker processes deliveries from the queue
func (s *WebhookService) worker(id int) {
	defer s.wg.Done()

	for {
		job := s.queue.Pop()
		if job == nil {
			s.log.Debug("Webhook worker stopped", "worker_id", id)
			return
		}
		metrics.WebhookQueueSize.Set(float64(s.queue.Len()))

		entry := s.deliver(context.Background(), job.Webhook, job.Event, job.Data)
		if job.Done != nil {
			job.Done <- entry
		}
	}
}

// Trigger enqueues one delivery per active webhook of the team subscribed to
// event and returns how many were enqueued. It never waits for deliveries.
func (s *WebhookService) Trigger(ctx context.Context, teamID string, event domain.EventType, data any) (int, error) {
	if !event.IsSupported() {
		return 0, errors.NewValidationError(fmt.Sprintf("Invalid events: %s", event), nil)
	}

	webhooks, err := s.store.ListActiveWebhooksForEvent(ctx, teamID, event)
	if err != nil {
		s.log.Error("Failed to look up webhooks", "team_id", teamID, "event", event, "error", err)
		return 0, errors.NewInternalError("Error triggering webhooks", err)
	}

	enqueued := 0
	for _, w := range webhooks {
		job := &queue.DeliveryJob{
			Priority: queue.PriorityNormal,
			Webhook:  w,
			Event:    event,
			Data:     data,
		}
		if !s.queue.Push(job) {
			metrics.WebhookDeliveriesDropped.WithLabelValues(string(event)).Inc()
			s.log.Error("Webhook delivery dropped, queue full or closed", "webhook_id", w.ID, "team_id", teamID, "event", event)
			continue
		}
		enqueued++
	}
	metrics.WebhookQueueSize.Set(float64(s.queue.Len()))

	if enqueued > 0 {
		s.log.Debug("Webhooks triggered", "team_id", teamID, "event", event, "deliveries", enqueued)
	}
	return enqueued, nil
}

// Publish fans event out to the team's webhooks in-process. It lets the
// dispatcher emit events directly when no message bus is configured.
func (s *WebhookService) Publish(ctx context.Context, event domain.Event) error {
	_, err := s.Trigger(ctx, event.TeamID, event.Type, event.Data)
	return err
}

// TestWebhook delivers a synthetic test event to the webhook and waits for the
// resulting log. The delivery runs on the worker pool ahead of queued event
// fan-out. Delivery failures are recorded, not returned.
func (s *WebhookService) TestWebhook(ctx context.Context, id, teamID string) (*domain.WebhookLog, error) {
	w, err := s.GetWebhook(ctx, id, teamID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"test":      true,
		"message":   testWebhookMessage,
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	}

	done := make(chan *domain.WebhookLog, 1)
	job := &queue.DeliveryJob{
		Priority: queue.PriorityHigh,
		Webhook:  w,
		Event:    domain.EventTest,
		Data:     payload,
		Done:     done,
	}
	if !s.queue.Push(job) {
		metrics.WebhookDeliveriesDropped.WithLabelValues(string(domain.EventTest)).Inc()
		return nil, errors.NewInternalError("Webhook delivery queue is full or stopped", nil)
	}
	metrics.WebhookQueueSize.Set(float64(s.queue.Len()))

	select {
	case entry := <-done:
		return entry, nil
	case <-ctx.Done():
		return nil, errors.NewInternalError("Webhook test was not delivered in time", ctx.Err())
	}
}

// deliver performs one signed POST and appends its log
func (s *WebhookService) deliver(ctx context.Context, w *domain.Webhook, event domain.EventType, data any) *domain.WebhookLog {
	start := time.Now()
	entry := s.post(ctx, w, event, data)

	status := "success"
	if !entry.Success {
		status = "failed"
		s.log.Warn("Webhook delivery failed", "webhook_id", w.ID, "event", event, "error", *entry.Error)
	}
	metrics.WebhookDeliveries.WithLabelValues(string(event), status).Inc()
	metrics.WebhookDeliveryDuration.WithLabelValues(string(event)).Observe(time.Since(start).Seconds())

	// the log must outlive a cancelled caller
	if err := s.store.AppendWebhookLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("Failed to append webhook log", "webhook_id", w.ID, "error", err)
	}
	return entry
}

func (s *WebhookService) post(ctx context.Context, w *domain.Webhook, event domain.EventType, data any) *domain.WebhookLog {
	now := s.now()
	envelope := domain.WebhookEnvelope{
		ID:        uuid.New().String(),
		Timestamp: strconv.FormatInt(now.UnixMilli(), 10),
		Event:     event,
		Data:      data,
	}
	entry := &domain.WebhookLog{
		WebhookID: w.ID,
		EventType: event,
		CreatedAt: now,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return failed(entry, fmt.Sprintf("failed to marshal payload: %v", err))
	}
	entry.Payload = string(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return failed(entry, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(webhook.HeaderSignature, webhook.Sign(payload, w.Secret))
	req.Header.Set(webhook.HeaderEvent, string(event))
	req.Header.Set(webhook.HeaderID, envelope.ID)
	req.Header.Set(webhook.HeaderTimestamp, envelope.Timestamp)

	resp, err := s.client.Do(req)
	if err != nil {
		return failed(entry, err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	respBody := string(body)
	statusCode := resp.StatusCode
	entry.ResponseStatus = &statusCode
	entry.ResponseBody = &respBody

	if statusCode < 200 || statusCode >= 300 {
		return failed(entry, fmt.Sprintf("HTTP %d: %s", statusCode, respBody))
	}
	entry.Success = true
	return entry
}

func failed(entry *domain.WebhookLog, msg string) *domain.WebhookLog {
	entry.Success = false
	entry.Error = &msg
	return entry
}

// CreateWebhook validates and registers a new active webhook
func (s *WebhookService) CreateWebhook(ctx context.Context, req *domain.CreateWebhookRequest) (*domain.Webhook, error) {
	if req.TeamID == "" {
		return nil, errors.NewUnauthorizedError("Team is required", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.NewValidationError("Name is required", nil)
	}
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	if err := validateEvents(req.Events); err != nil {
		return nil, err
	}

	w := &domain.Webhook{
		TeamID: req.TeamID,
		Name:   strings.TrimSpace(req.Name),
		URL:    req.URL,
		Secret: req.Secret,
		Events: req.Events,
		Active: true,
	}
	if err := s.store.CreateWebhook(ctx, w); err != nil {
		s.log.Error("Failed to create webhook", "team_id", req.TeamID, "error", err)
		return nil, errors.NewInternalError("Failed to create webhook", err)
	}

	s.log.Info("Webhook created", "id", w.ID, "team_id", w.TeamID, "events", w.Events)
	return w, nil
}

// UpdateWebhook applies a partial update to a team's webhook
func (s *WebhookService) UpdateWebhook(ctx context.Context, id, teamID string, req *domain.UpdateWebhookRequest) (*domain.Webhook, error) {
	if _, err := s.GetWebhook(ctx, id, teamID); err != nil {
		return nil, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, errors.NewValidationError("Name cannot be empty", nil)
	}
	if req.URL != nil {
		if err := validateURL(*req.URL); err != nil {
			return nil, err
		}
	}
	if req.Events != nil {
		if err := validateEvents(*req.Events); err != nil {
			return nil, err
		}
	}

	w, err := s.store.UpdateWebhook(ctx, id, domain.WebhookUpdate{
		Name:      req.Name,
		URL:       req.URL,
		Secret:    req.Secret,
		Events:    req.Events,
		Active:    req.Active,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return nil, webhookStoreError("Failed to update webhook", err)
	}

	s.log.Info("Webhook updated", "id", id, "team_id", teamID)
	return w, nil
}

// DeleteWebhook removes a team's webhook
func (s *WebhookService) DeleteWebhook(ctx context.Context, id, teamID string) error {
	if _, err := s.GetWebhook(ctx, id, teamID); err != nil {
		return err
	}
	if err := s.store.DeleteWebhook(ctx, id); err != nil {
		return webhookStoreError("Failed to delete webhook", err)
	}

	s.log.Info("Webhook deleted", "id", id, "team_id", teamID)
	return nil
}

// GetWebhook returns a webhook owned by teamID
func (s *WebhookService) GetWebhook(ctx context.Context, id, teamID string) (*domain.Webhook, error) {
	w, err := s.store.GetWebhook(ctx, id)
	if err != nil {
		return nil, webhookStoreError("Failed to get webhook", err)
	}
	if w.TeamID != teamID {
		return nil, errors.NewNotFoundError("Webhook not found", nil)
	}
	return w, nil
}

// ListWebhooks returns a team's webhooks
func (s *WebhookService) ListWebhooks(ctx context.Context, teamID string) ([]*domain.Webhook, error) {
	webhooks, err := s.store.ListWebhooksForTeam(ctx, teamID)
	if err != nil {
		return nil, errors.NewInternalError("Failed to list webhooks", err)
	}
	return webhooks, nil
}

// ListWebhookLogs returns the most recent delivery logs of a team's webhook
func (s *WebhookService) ListWebhookLogs(ctx context.Context, id, teamID string, limit int) ([]*domain.WebhookLog, error) {
	if _, err := s.GetWebhook(ctx, id, teamID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	logs, err := s.store.ListWebhookLogs(ctx, id, limit)
	if err != nil {
		return nil, errors.NewInternalError("Failed to get webhook logs", err)
	}
	return logs, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewValidationError("Invalid URL", err)
	}
	return nil
}

func validateEvents(events []domain.EventType) error {
	if len(events) == 0 {
		return errors.NewValidationError("At least one event is required", nil)
	}
	if invalid := domain.InvalidEvents(events); len(invalid) > 0 {
		return errors.NewValidationError("Invalid events: "+strings.Join(invalid, ", "), nil)
	}
	return nil
}

func webhookStoreError(message string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NewNotFoundError("Webhook not found", err)
	}
	return errors.NewInternalError(message, err)
}
