package domain

import (
	"encoding/json"
	"time"
)

// EventType represents a domain event that webhooks can subscribe to
type EventType string

const (
	EventMessageReceived EventType = "message.received"
	EventMessageSent     EventType = "message.sent"
	EventContactCreated  EventType = "contact.created"
	EventContactUpdated  EventType = "contact.updated"
	EventTemplateUsed    EventType = "template.used"

	// EventTest is only used by manual webhook test deliveries
	EventTest EventType = "test"
)

// SupportedEvents is the closed vocabulary webhooks may subscribe to
var SupportedEvents = []EventType{
	EventMessageReceived,
	EventMessageSent,
	EventContactCreated,
	EventContactUpdated,
	EventTemplateUsed,
}

// IsSupported reports whether e belongs to the subscribable vocabulary
func (e EventType) IsSupported() bool {
	for _, s := range SupportedEvents {
		if e == s {
			return true
		}
	}
	return false
}

// InvalidEvents returns the values of events outside the vocabulary, in order
func InvalidEvents(events []EventType) []string {
	var invalid []string
	for _, e := range events {
		if !e.IsSupported() {
			invalid = append(invalid, string(e))
		}
	}
	return invalid
}

// Webhook is a team's subscription of an HTTP endpoint to a set of events
type Webhook struct {
	ID        string      `json:"id" bson:"_id"`
	TeamID    string      `json:"team_id" bson:"team_id"`
	Name      string      `json:"name" bson:"name"`
	URL       string      `json:"url" bson:"url"`
	Secret    string      `json:"-" bson:"secret,omitempty"`
	Events    []EventType `json:"events" bson:"events"`
	Active    bool        `json:"active" bson:"active"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" bson:"updated_at"`
}

// HasSecret reports whether deliveries are signed
func (w *Webhook) HasSecret() bool {
	return w.Secret != ""
}

// MarshalJSON exposes has_secret instead of the secret itself
func (w Webhook) MarshalJSON() ([]byte, error) {
	type webhook Webhook
	return json.Marshal(struct {
		webhook
		HasSecret bool `json:"has_secret"`
	}{webhook(w), w.Secret != ""})
}

// Subscribes reports whether the webhook is subscribed to e
func (w *Webhook) Subscribes(e EventType) bool {
	for _, ev := range w.Events {
		if ev == e {
			return true
		}
	}
	return false
}

// WebhookUpdate is a partial update; nil fields are left unchanged
type WebhookUpdate struct {
	Name      *string
	URL       *string
	Secret    *string
	Events    *[]EventType
	Active    *bool
	UpdatedAt time.Time
}

// Apply copies the set fields of u onto w
func (u WebhookUpdate) Apply(w *Webhook) {
	if u.Name != nil {
		w.Name = *u.Name
	}
	if u.URL != nil {
		w.URL = *u.URL
	}
	if u.Secret != nil {
		w.Secret = *u.Secret
	}
	if u.Events != nil {
		w.Events = append([]EventType(nil), (*u.Events)...)
	}
	if u.Active != nil {
		w.Active = *u.Active
	}
	if !u.UpdatedAt.IsZero() {
		w.UpdatedAt = u.UpdatedAt
	}
}

// WebhookLog records one delivery attempt (append-only). Payload holds the
// exact JSON envelope that was sent.
type WebhookLog struct {
	ID             string    `json:"id" bson:"_id"`
	WebhookID      string    `json:"webhook_id" bson:"webhook_id"`
	EventType      EventType `json:"event_type" bson:"event_type"`
	Payload        string    `json:"payload" bson:"payload"`
	ResponseStatus *int      `json:"response_status" bson:"response_status,omitempty"`
	ResponseBody   *string   `json:"response_body" bson:"response_body,omitempty"`
	Success        bool      `json:"success" bson:"success"`
	Error          *string   `json:"error" bson:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// WebhookEnvelope is the signed body POSTed to subscribers
type WebhookEnvelope struct {
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Event     EventType `json:"event"`
	Data      any       `json:"data"`
}

// Event is a team-scoped domain event published by the messaging pipeline
type Event struct {
	Type      EventType      `json:"type"`
	TeamID    string         `json:"team_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
