package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
)

// MemoryStore is an in-process store used for local runs and tests.
// Records are copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	messages    map[string]*domain.ScheduledMessage
	messageLogs []*domain.ScheduledMessageLog
	webhooks    map[string]*domain.Webhook
	webhookLogs []*domain.WebhookLog
	credentials map[string]domain.ChannelCredentials
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:    make(map[string]*domain.ScheduledMessage),
		webhooks:    make(map[string]*domain.Webhook),
		credentials: make(map[string]domain.ChannelCredentials),
		now:         time.Now,
	}
}

func copyMessage(m *domain.ScheduledMessage) *domain.ScheduledMessage {
	c := *m
	if m.RecurrenceConfig != nil {
		cfg := *m.RecurrenceConfig
		c.RecurrenceConfig = &cfg
	}
	return &c
}

func copyWebhook(w *domain.Webhook) *domain.Webhook {
	c := *w
	c.Events = append([]domain.EventType(nil), w.Events...)
	return &c
}

// CreateScheduledMessage stores m, assigning its ID and timestamps
func (s *MemoryStore) CreateScheduledMessage(ctx context.Context, m *domain.ScheduledMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	m.ID = uuid.New().String()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.messages[m.ID] = copyMessage(m)
	return nil
}

// GetScheduledMessage returns the team's message with the given ID
func (s *MemoryStore) GetScheduledMessage(ctx context.Context, id, teamID string) (*domain.ScheduledMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok || m.TeamID != teamID {
		return nil, ErrNotFound
	}
	return copyMessage(m), nil
}

// ListScheduledMessages returns the team's messages ordered by next run
func (s *MemoryStore) ListScheduledMessages(ctx context.Context, teamID string, filter domain.ScheduledMessageFilter) ([]*domain.ScheduledMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScheduledMessage
	for _, m := range s.messages {
		if m.TeamID != teamID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		result = append(result, copyMessage(m))
	}
	sortByNextRun(result)

	return paginate(result, filter.Offset, filter.Limit), nil
}

// ListDueScheduledMessages returns pending messages with NextRun <= now, earliest first
func (s *MemoryStore) ListDueScheduledMessages(ctx context.Context, now time.Time) ([]*domain.ScheduledMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.ScheduledMessage
	for _, m := range s.messages {
		if m.Status == domain.ScheduledStatusPending && !m.NextRun.After(now) {
			due = append(due, copyMessage(m))
		}
	}
	sortByNextRun(due)
	return due, nil
}

// UpdateScheduledMessage applies update to the message with the given ID
func (s *MemoryStore) UpdateScheduledMessage(ctx context.Context, id string, update domain.ScheduledMessageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if update.ExpectStatus != nil && m.Status != *update.ExpectStatus {
		return ErrStatusChanged
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = s.now()
	}
	update.Apply(m)
	return nil
}

// AppendScheduledMessageLog records a dispatch attempt
func (s *MemoryStore) AppendScheduledMessageLog(ctx context.Context, log *domain.ScheduledMessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = uuid.New().String()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = s.now()
	}
	c := *log
	s.messageLogs = append(s.messageLogs, &c)
	return nil
}

// ListScheduledMessageLogs returns a message's dispatch history, oldest first
func (s *MemoryStore) ListScheduledMessageLogs(ctx context.Context, messageID string) ([]*domain.ScheduledMessageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := []*domain.ScheduledMessageLog{}
	for _, l := range s.messageLogs {
		if l.ScheduledMessageID == messageID {
			c := *l
			logs = append(logs, &c)
		}
	}
	return logs, nil
}

// CreateWebhook stores w, assigning its ID and timestamps
func (s *MemoryStore) CreateWebhook(ctx context.Context, w *domain.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w.ID = uuid.New().String()
	w.CreatedAt = now
	w.UpdatedAt = now
	s.webhooks[w.ID] = copyWebhook(w)
	return nil
}

// GetWebhook returns the webhook with the given ID
func (s *MemoryStore) GetWebhook(ctx context.Context, id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyWebhook(w), nil
}

// UpdateWebhook applies update and returns the stored result
func (s *MemoryStore) UpdateWebhook(ctx context.Context, id string, update domain.WebhookUpdate) (*domain.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = s.now()
	}
	update.Apply(w)
	return copyWebhook(w), nil
}

// DeleteWebhook removes a webhook. Its delivery logs are kept.
func (s *MemoryStore) DeleteWebhook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[id]; !ok {
		return ErrNotFound
	}
	delete(s.webhooks, id)
	return nil
}

// ListWebhooksForTeam returns the team's webhooks, newest first
func (s *MemoryStore) ListWebhooksForTeam(ctx context.Context, teamID string) ([]*domain.Webhook, error) {
	return s.listWebhooks(func(w *domain.Webhook) bool { return w.TeamID == teamID }), nil
}

// ListActiveWebhooksForEvent returns the team's active webhooks subscribed to event
func (s *MemoryStore) ListActiveWebhooksForEvent(ctx context.Context, teamID string, event domain.EventType) ([]*domain.Webhook, error) {
	return s.listWebhooks(func(w *domain.Webhook) bool {
		return w.TeamID == teamID && w.Active && w.Subscribes(event)
	}), nil
}

func (s *MemoryStore) listWebhooks(match func(*domain.Webhook) bool) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Webhook{}
	for _, w := range s.webhooks {
		if match(w) {
			result = append(result, copyWebhook(w))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// AppendWebhookLog records a delivery attempt
func (s *MemoryStore) AppendWebhookLog(ctx context.Context, log *domain.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = uuid.New().String()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = s.now()
	}
	c := *log
	s.webhookLogs = append(s.webhookLogs, &c)
	return nil
}

// ListWebhookLogs returns up to limit delivery logs of a webhook, newest first
func (s *MemoryStore) ListWebhookLogs(ctx context.Context, webhookID string, limit int) ([]*domain.WebhookLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := []*domain.WebhookLog{}
	for i := len(s.webhookLogs) - 1; i >= 0; i-- {
		if limit > 0 && len(logs) >= limit {
			break
		}
		if l := s.webhookLogs[i]; l.WebhookID == webhookID {
			c := *l
			logs = append(logs, &c)
		}
	}
	return logs, nil
}

// GetChannelCredentials returns the team's stored channel credentials
func (s *MemoryStore) GetChannelCredentials(ctx context.Context, teamID string) (*domain.ChannelCredentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds, ok := s.credentials[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	return &creds, nil
}

// SaveChannelCredentials replaces the team's channel credentials
func (s *MemoryStore) SaveChannelCredentials(ctx context.Context, teamID string, creds domain.ChannelCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[teamID] = creds
	return nil
}

func sortByNextRun(messages []*domain.ScheduledMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].NextRun.Before(messages[j].NextRun)
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	if items == nil {
		return []T{}
	}
	return items
}
