package domain

import "time"

// ScheduleMessageRequest represents a request to schedule a message.
// TeamID and UserID come from the authenticated request context.
type ScheduleMessageRequest struct {
	TeamID            string            `json:"-"`
	UserID            string            `json:"-"`
	PhoneNumber       string            `json:"phone_number"`
	Message           string            `json:"message"`
	ScheduledTime     *time.Time        `json:"scheduled_time"`
	TemplateID        string            `json:"template_id,omitempty"`
	Recurring         bool              `json:"recurring"`
	RecurrencePattern RecurrencePattern `json:"recurrence_pattern,omitempty"`
	RecurrenceConfig  *RecurrenceConfig `json:"recurrence_config,omitempty"`
}

// UpdateScheduledMessageRequest represents a partial update of a scheduled message
type UpdateScheduledMessageRequest struct {
	Message           *string            `json:"message"`
	ScheduledTime     *time.Time         `json:"scheduled_time"`
	Recurring         *bool              `json:"recurring"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceConfig  *RecurrenceConfig  `json:"recurrence_config"`
}

// ListScheduledMessagesRequest represents listing query parameters
type ListScheduledMessagesRequest struct {
	Status ScheduledMessageStatus `form:"status"`
	Limit  int                    `form:"limit"`
	Offset int                    `form:"offset"`
}

// CreateWebhookRequest represents a request to register a webhook
type CreateWebhookRequest struct {
	TeamID string      `json:"-"`
	Name   string      `json:"name" binding:"required"`
	URL    string      `json:"url" binding:"required"`
	Events []EventType `json:"events" binding:"required,min=1"`
	Secret string      `json:"secret,omitempty"`
}

// UpdateWebhookRequest represents a partial update of a webhook
type UpdateWebhookRequest struct {
	Name   *string      `json:"name"`
	URL    *string      `json:"url"`
	Events *[]EventType `json:"events"`
	Secret *string      `json:"secret"`
	Active *bool        `json:"active"`
}

// TriggerEventRequest represents a domain event raised over HTTP
type TriggerEventRequest struct {
	Event EventType      `json:"event" binding:"required"`
	Data  map[string]any `json:"data"`
}

// SaveChannelCredentialsRequest stores the team's encrypted channel API key
type SaveChannelCredentialsRequest struct {
	EncryptedAPIKey string `json:"encryptedApiKey" binding:"required"`
	Passphrase      string `json:"passphrase" binding:"required"`
}
