package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ChatMetrics tracks streamed generations
type ChatMetrics struct {
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	TimeToFirstToken   prometheus.Histogram
	ChunksStreamed     prometheus.Counter
	ActiveGenerations  prometheus.Gauge
	StopRequestsTotal  *prometheus.CounterVec

	UpstreamErrorsTotal  *prometheus.CounterVec
	UpstreamCircuitState prometheus.Gauge

	PersistFailuresTotal *prometheus.CounterVec
}

func newChatMetrics() *ChatMetrics {
	return &ChatMetrics{
		GenerationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_generations_total",
				Help: "Generations by final outcome",
			},
			[]string{"outcome"},
		),
		GenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_generation_duration_seconds",
				Help:    "Wall time from upstream request to end of relay",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 300},
			},
			[]string{"outcome"},
		),
		TimeToFirstToken: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chat_time_to_first_token_seconds",
				Help:    "Latency until the model produced its first content delta",
				Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 16, 32},
			},
		),
		ChunksStreamed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_chunks_streamed_total",
				Help: "Content deltas forwarded to clients",
			},
		),
		ActiveGenerations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chat_active_generations",
				Help: "Generations currently streaming on this instance",
			},
		),
		StopRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_stop_requests_total",
				Help: "Explicit stop requests by result",
			},
			[]string{"result"},
		),
		UpstreamErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_upstream_errors_total",
				Help: "Errors talking to the inference server",
			},
			[]string{"kind"},
		),
		UpstreamCircuitState: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chat_upstream_circuit_state",
				Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
			},
		),
		PersistFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_persist_failures_total",
				Help: "Messages that could not be written to the conversation store",
			},
			[]string{"role"},
		),
	}
}
