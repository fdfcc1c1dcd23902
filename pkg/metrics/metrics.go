package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event fabric metrics
	EventsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_enqueued_total",
			Help: "Total number of events accepted into the priority queue",
		},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Total number of events dropped because a sub-queue was full",
		},
	)

	EventsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_completed_total",
			Help: "Total number of events that completed all handlers",
		},
	)

	EventsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_failed_total",
			Help: "Total number of events that terminated in failed state",
		},
	)

	EventsRetried = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_retried_total",
			Help: "Total number of event retry re-enqueues",
		},
	)

	// Delivery metrics
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Total number of messages with at least one successful recipient",
		},
	)

	MessagesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_failed_total",
			Help: "Total number of messages where every recipient failed",
		},
	)

	// Webhook metrics
	WebhooksReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_webhooks_received_total",
			Help: "Total number of inbound webhook deliveries processed",
		},
	)

	WebhooksRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_webhooks_rejected_total",
			Help: "Total number of inbound webhook deliveries rejected",
		},
	)

	// Personal log metrics
	PersonalLogsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_personal_logs_written_total",
			Help: "Total number of entries dispatched to personal log channels",
		},
	)

	PersonalLogsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_personal_logs_skipped_total",
			Help: "Total number of entries skipped (no channel or encryption failure)",
		},
	)

	// Gauges
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Current queue depth by priority level",
		},
		[]string{"priority"},
	)

	RegisteredWebhooks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_registered_webhooks",
			Help: "Number of registered inbound webhooks",
		},
	)

	ConfiguredUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_configured_users",
			Help: "Number of users with a configured personal log channel",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsEnqueued)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(EventsCompleted)
	prometheus.MustRegister(EventsFailed)
	prometheus.MustRegister(EventsRetried)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(MessagesFailed)
	prometheus.MustRegister(WebhooksReceived)
	prometheus.MustRegister(WebhooksRejected)
	prometheus.MustRegister(PersonalLogsWritten)
	prometheus.MustRegister(PersonalLogsSkipped)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(RegisteredWebhooks)
	prometheus.MustRegister(ConfiguredUsers)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// counters mirrors the prometheus counters as atomics so the in-process
// facade can return a snapshot without scraping
var counters struct {
	enqueued  atomic.Int64
	dropped   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	sent      atomic.Int64
	sendFail  atomic.Int64
	whRecv    atomic.Int64
	whReject  atomic.Int64
	plWritten atomic.Int64
	plSkipped atomic.Int64
}

// Snapshot is a point-in-time copy of the fabric counters
type Snapshot struct {
	EventsEnqueued      int64 `json:"events_enqueued"`
	EventsDropped       int64 `json:"events_dropped"`
	EventsCompleted     int64 `json:"events_completed"`
	EventsFailed        int64 `json:"events_failed"`
	EventsRetried       int64 `json:"events_retried"`
	MessagesSent        int64 `json:"messages_sent"`
	MessagesFailed      int64 `json:"messages_failed"`
	WebhooksReceived    int64 `json:"webhooks_received"`
	WebhooksRejected    int64 `json:"webhooks_rejected"`
	PersonalLogsWritten int64 `json:"personal_logs_written"`
	PersonalLogsSkipped int64 `json:"personal_logs_skipped"`
}

// GetSnapshot returns the current counter values
func GetSnapshot() Snapshot {
	return Snapshot{
		EventsEnqueued:      counters.enqueued.Load(),
		EventsDropped:       counters.dropped.Load(),
		EventsCompleted:     counters.completed.Load(),
		EventsFailed:        counters.failed.Load(),
		EventsRetried:       counters.retried.Load(),
		MessagesSent:        counters.sent.Load(),
		MessagesFailed:      counters.sendFail.Load(),
		WebhooksReceived:    counters.whRecv.Load(),
		WebhooksRejected:    counters.whReject.Load(),
		PersonalLogsWritten: counters.plWritten.Load(),
		PersonalLogsSkipped: counters.plSkipped.Load(),
	}
}

// IncEventsEnqueued records an accepted event
func IncEventsEnqueued() {
	EventsEnqueued.Inc()
	counters.enqueued.Add(1)
}

// IncEventsDropped records a queue-full drop
func IncEventsDropped() {
	EventsDropped.Inc()
	counters.dropped.Add(1)
}

// IncEventsCompleted records a completed event
func IncEventsCompleted() {
	EventsCompleted.Inc()
	counters.completed.Add(1)
}

// IncEventsFailed records a terminally failed event
func IncEventsFailed() {
	EventsFailed.Inc()
	counters.failed.Add(1)
}

// IncEventsRetried records a retry re-enqueue
func IncEventsRetried() {
	EventsRetried.Inc()
	counters.retried.Add(1)
}

// IncMessagesSent records a successful message
func IncMessagesSent() {
	MessagesSent.Inc()
	counters.sent.Add(1)
}

// IncMessagesFailed records a message where every recipient failed
func IncMessagesFailed() {
	MessagesFailed.Inc()
	counters.sendFail.Add(1)
}

// IncWebhooksReceived records a processed inbound webhook
func IncWebhooksReceived() {
	WebhooksReceived.Inc()
	counters.whRecv.Add(1)
}

// IncWebhooksRejected records a rejected inbound webhook
func IncWebhooksRejected() {
	WebhooksRejected.Inc()
	counters.whReject.Add(1)
}

// IncPersonalLogsWritten records a dispatched personal log entry
func IncPersonalLogsWritten() {
	PersonalLogsWritten.Inc()
	counters.plWritten.Add(1)
}

// IncPersonalLogsSkipped records a dropped personal log entry
func IncPersonalLogsSkipped() {
	PersonalLogsSkipped.Inc()
	counters.plSkipped.Add(1)
}
