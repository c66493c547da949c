package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScheduledDispatches tracks dispatch attempts of scheduled messages
	ScheduledDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_automation_scheduled_dispatches_total",
			Help: "Total number of scheduled message dispatch attempts",
		},
		[]string{"status"}, // success, failed
	)

	// SchedulerTickDuration tracks how long one dispatcher tick takes
	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whatsapp_automation_scheduler_tick_duration_seconds",
			Help:    "Scheduler tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ScheduledMessagesDue tracks the number of due messages found by the last tick
	ScheduledMessagesDue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsapp_automation_scheduled_messages_due",
			Help: "Number of due scheduled messages found by the last tick",
		},
	)

	// WebhookDeliveries tracks webhook delivery attempts
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_automation_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"event", "status"},
	)

	// WebhookDeliveryDuration tracks webhook delivery round trip time
	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whatsapp_automation_webhook_delivery_duration_seconds",
			Help:    "Webhook delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	// WebhookQueueSize tracks the current delivery queue size
	WebhookQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsapp_automation_webhook_queue_size",
			Help: "Current number of deliveries waiting in the queue",
		},
	)

	// WebhookDeliveriesDropped tracks deliveries rejected by a full queue
	WebhookDeliveriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_automation_webhook_deliveries_dropped_total",
			Help: "Total number of webhook deliveries dropped because the queue was full",
		},
		[]string{"event"},
	)

	// EventsConsumed tracks domain events read from the message bus
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_automation_events_consumed_total",
			Help: "Total number of domain events consumed from the message bus",
		},
		[]string{"event", "result"}, // ack, reject, requeue
	)

	// RateLimitExceeded tracks rate limit violations
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_automation_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"team_id"},
	)

	// ConsumerRestarts tracks event consumer restart events
	ConsumerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_automation_consumer_restarts_total",
			Help: "Total number of event consumer restarts",
		},
	)
)
