package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "deskbridge_http_requests_total", Help: "Gateway HTTP requests"},
		[]string{"route", "status"},
	)
	IngestEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "deskbridge_ingest_events_total", Help: "Processor outcomes per platform"},
		[]string{"platform", "outcome"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "deskbridge_enqueue_total", Help: "SQS enqueue results"},
		[]string{"queue", "result"},
	)
	PlatformAPI = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "deskbridge_platform_api_total", Help: "Outbound chat-platform API outcomes"},
		[]string{"platform", "result"},
	)
	DeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "deskbridge_delivery_attempts_total", Help: "Tenant webhook delivery attempt outcomes"},
		[]string{"result"},
	)
	DeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "deskbridge_delivery_latency_seconds", Help: "Tenant webhook delivery latency"},
	)
	DeadLetters = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "deskbridge_dead_letters_total", Help: "Inline processing failures parked for replay"},
		[]string{"platform"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests, IngestEvents, Enqueues, PlatformAPI, DeliveryAttempts, DeliveryLatency, DeadLetters)
}
