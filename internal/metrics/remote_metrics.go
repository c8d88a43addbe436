package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы одной попытки удаленного вызова
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeTransport   = "transport_error"
)

// RemoteCallMetrics метрики исходящих вызовов
type RemoteCallMetrics interface {
	ObserveAttempt(service, outcome string, duration time.Duration)
	IncExhausted(service string)
}

type remoteCallMetrics struct {
	attempts  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	exhausted *prometheus.CounterVec
}

// NewRemoteCallMetrics создает метрики исходящих вызовов
func NewRemoteCallMetrics(registry *prometheus.Registry) RemoteCallMetrics {
	return &remoteCallMetrics{
		attempts: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_call_attempts_total",
				Help: "Outbound call attempts by target service and outcome",
			},
			[]string{"service", "outcome"},
		),
		latency: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remote_call_duration_seconds",
				Help:    "Outbound call attempt latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		exhausted: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_call_retries_exhausted_total",
				Help: "Outbound calls that failed after the retry budget was spent",
			},
			[]string{"service"},
		),
	}
}

// ObserveAttempt учитывает одну попытку вызова
func (m *remoteCallMetrics) ObserveAttempt(service, outcome string, duration time.Duration) {
	m.attempts.WithLabelValues(service, outcome).Inc()
	m.latency.WithLabelValues(service).Observe(duration.Seconds())
}

// IncExhausted учитывает исчерпание бюджета повторов
func (m *remoteCallMetrics) IncExhausted(service string) {
	m.exhausted.WithLabelValues(service).Inc()
}

type nopRemoteCallMetrics struct{}

// NopRemoteCallMetrics возвращает метрики, которые ничего не записывают
func NopRemoteCallMetrics() RemoteCallMetrics { return nopRemoteCallMetrics{} }

func (nopRemoteCallMetrics) ObserveAttempt(string, string, time.Duration) {}
func (nopRemoteCallMetrics) IncExhausted(string)                          {}
