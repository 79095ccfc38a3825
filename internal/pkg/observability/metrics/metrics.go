package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reliable_queue_messages_claimed_total",
			Help: "Total messages claimed from the queue",
		})

	ClaimMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reliable_queue_claim_misses_total",
			Help: "Total claim attempts that returned no message",
		})

	MessagesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reliable_queue_messages_deleted_total",
			Help: "Total messages deleted after successful processing",
		})

	MessagesReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reliable_queue_messages_released_total",
			Help: "Total messages released back to the queue",
		})

	MessagesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reliable_queue_messages_failed_total",
			Help: "Total messages whose processing failed",
		})

	MessageProcessingTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reliable_queue_message_processing_seconds",
			Help:    "Histogram of message processing duration",
			Buckets: prometheus.DefBuckets,
		})

	QueueBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reliable_queue_backlog",
			Help: "Approximate number of messages in the queue",
		},
	)
)

func Setup() {
	prometheus.MustRegister(MessagesClaimed)
	prometheus.MustRegister(ClaimMisses)
	prometheus.MustRegister(MessagesDeleted)
	prometheus.MustRegister(MessagesReleased)
	prometheus.MustRegister(MessagesFailed)
	prometheus.MustRegister(MessageProcessingTime)
	prometheus.MustRegister(QueueBacklog)
}
