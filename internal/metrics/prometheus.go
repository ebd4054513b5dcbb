package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "liaxp_training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_training_runs_total",
			Help: "Total training runs by outcome",
		},
		[]string{"status"},
	)

	InsightsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "liaxp_insights_generated_total",
			Help: "Total insight snapshots written",
		},
	)

	MessagesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_messages_queued_total",
			Help: "Total coach messages queued for review",
		},
		[]string{"moment"},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_messages_sent_total",
			Help: "Total messages delivered by provider",
		},
		[]string{"provider"},
	)

	MessagesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_messages_failed_total",
			Help: "Total message delivery failures by provider",
		},
		[]string{"provider"},
	)

	ReviewTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_review_transitions_total",
			Help: "Total review queue transitions",
		},
		[]string{"to_status"},
	)

	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_webhook_requests_total",
			Help: "Total inbound webhook requests",
		},
		[]string{"kind", "status"},
	)

	ChatIntents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_chat_intents_total",
			Help: "Total chat messages by resolved intent",
		},
		[]string{"intent"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	ScheduledJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_scheduled_jobs_total",
			Help: "Total scheduler executions by outcome",
		},
		[]string{"moment", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liaxp_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(TrainingDuration)
	prometheus.MustRegister(TrainingRuns)
	prometheus.MustRegister(InsightsGenerated)
	prometheus.MustRegister(MessagesQueued)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(MessagesFailed)
	prometheus.MustRegister(ReviewTransitions)
	prometheus.MustRegister(WebhookRequests)
	prometheus.MustRegister(ChatIntents)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(ScheduledJobs)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
