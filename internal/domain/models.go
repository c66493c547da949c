package domain

import "time"

// ScheduledMessageStatus represents the lifecycle state of a scheduled message
type ScheduledMessageStatus string

const (
	ScheduledStatusPending   ScheduledMessageStatus = "pending"
	ScheduledStatusSent      ScheduledMessageStatus = "sent"
	ScheduledStatusFailed    ScheduledMessageStatus = "failed"
	ScheduledStatusCancelled ScheduledMessageStatus = "cancelled"
)

// IsValid reports whether s is a known status
func (s ScheduledMessageStatus) IsValid() bool {
	switch s {
	case ScheduledStatusPending, ScheduledStatusSent, ScheduledStatusFailed, ScheduledStatusCancelled:
		return true
	}
	return false
}

// RecurrencePattern names the rule used to compute the next trigger time
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceCustom  RecurrencePattern = "custom"
)

// RecurrenceUnit is the unit of a custom recurrence interval
type RecurrenceUnit string

const (
	UnitMinutes RecurrenceUnit = "minutes"
	UnitHours   RecurrenceUnit = "hours"
	UnitDays    RecurrenceUnit = "days"
	UnitWeeks   RecurrenceUnit = "weeks"
	UnitMonths  RecurrenceUnit = "months"
)

// RecurrenceConfig holds the interval of a custom recurrence
type RecurrenceConfig struct {
	Interval int            `json:"interval" bson:"interval"`
	Unit     RecurrenceUnit `json:"unit" bson:"unit"`
}

// ScheduledMessage is a message queued for delivery at NextRun, optionally recurring.
// Records are never deleted; cancellation is a status transition.
type ScheduledMessage struct {
	ID                string                 `json:"id" bson:"_id"`
	TeamID            string                 `json:"team_id" bson:"team_id"`
	UserID            string                 `json:"user_id" bson:"user_id"`
	PhoneNumber       string                 `json:"phone_number" bson:"phone_number"`
	Message           string                 `json:"message" bson:"message"`
	TemplateID        string                 `json:"template_id,omitempty" bson:"template_id,omitempty"`
	NextRun           time.Time              `json:"next_run" bson:"next_run"`
	Status            ScheduledMessageStatus `json:"status" bson:"status"`
	Recurring         bool                   `json:"recurring" bson:"recurring"`
	RecurrencePattern RecurrencePattern      `json:"recurrence_pattern,omitempty" bson:"recurrence_pattern,omitempty"`
	RecurrenceConfig  *RecurrenceConfig      `json:"recurrence_config,omitempty" bson:"recurrence_config,omitempty"`
	CreatedAt         time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at" bson:"updated_at"`
}

// ScheduledMessageUpdate is a partial update; nil fields are left unchanged.
// When ExpectStatus is set the update only applies if the stored status still equals it.
type ScheduledMessageUpdate struct {
	ExpectStatus      *ScheduledMessageStatus
	Message           *string
	NextRun           *time.Time
	Status            *ScheduledMessageStatus
	Recurring         *bool
	RecurrencePattern *RecurrencePattern
	RecurrenceConfig  *RecurrenceConfig
	UpdatedAt         time.Time
}

// Apply copies the set fields of u onto m
func (u ScheduledMessageUpdate) Apply(m *ScheduledMessage) {
	if u.Message != nil {
		m.Message = *u.Message
	}
	if u.NextRun != nil {
		m.NextRun = *u.NextRun
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.Recurring != nil {
		m.Recurring = *u.Recurring
	}
	if u.RecurrencePattern != nil {
		m.RecurrencePattern = *u.RecurrencePattern
	}
	if u.RecurrenceConfig != nil {
		cfg := *u.RecurrenceConfig
		m.RecurrenceConfig = &cfg
	}
	if !u.UpdatedAt.IsZero() {
		m.UpdatedAt = u.UpdatedAt
	}
}

// ScheduledMessageFilter narrows a team's scheduled message listing
type ScheduledMessageFilter struct {
	Status ScheduledMessageStatus
	Limit  int
	Offset int
}

// DispatchStatus is the outcome of one dispatch attempt
type DispatchStatus string

const (
	DispatchSuccess DispatchStatus = "success"
	DispatchFailed  DispatchStatus = "failed"
)

// ScheduledMessageLog records one dispatch attempt (append-only)
type ScheduledMessageLog struct {
	ID                 string         `json:"id" bson:"_id"`
	ScheduledMessageID string         `json:"scheduled_message_id" bson:"scheduled_message_id"`
	Status             DispatchStatus `json:"status" bson:"status"`
	Error              string         `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt          time.Time      `json:"created_at" bson:"created_at"`
}

// ScheduledMessageWithLogs is a scheduled message joined with its dispatch history
type ScheduledMessageWithLogs struct {
	*ScheduledMessage
	Logs []*ScheduledMessageLog `json:"logs"`
}

// ChannelCredentials are the per-team settings needed to deliver through the
// messaging channel. The API key is stored encrypted with the passphrase.
type ChannelCredentials struct {
	EncryptedAPIKey string `json:"encryptedApiKey" bson:"encryptedApiKey"`
	Passphrase      string `json:"passphrase" bson:"passphrase"`
}

// Valid reports whether both parts of the credentials are present
func (c *ChannelCredentials) Valid() bool {
	return c != nil && c.EncryptedAPIKey != "" && c.Passphrase != ""
}
