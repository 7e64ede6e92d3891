package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway call metrics, served at /metrics by the reader server.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satyr_llm_requests_total",
		Help: "Model gateway calls by stage, provider, and outcome.",
	}, []string{"stage", "provider", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satyr_llm_request_duration_seconds",
		Help:    "Wall-clock duration of a gateway call including retries.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"stage", "provider"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satyr_llm_tokens_total",
		Help: "Tokens consumed by stage and direction.",
	}, []string{"stage", "direction"})
)

func recordRequest(stage Stage, provider, outcome string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(string(stage), provider, outcome).Inc()
	requestDuration.WithLabelValues(string(stage), provider).Observe(elapsed.Seconds())
}

func recordUsage(stage Stage, u Usage) {
	s := string(stage)
	tokensTotal.WithLabelValues(s, "input").Add(float64(u.InputTokens))
	tokensTotal.WithLabelValues(s, "output").Add(float64(u.OutputTokens))
	tokensTotal.WithLabelValues(s, "cache_creation").Add(float64(u.CacheCreationTokens))
	tokensTotal.WithLabelValues(s, "cache_read").Add(float64(u.CacheReadTokens))
}
