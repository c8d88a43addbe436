package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CredentialMetrics метрики проверки токенов
type CredentialMetrics interface {
	IncKeySetFetch(domain, outcome string)
	IncValidation(result string)
}

type credentialMetrics struct {
	keySetFetches *prometheus.CounterVec
	validations   *prometheus.CounterVec
}

// NewCredentialMetrics создает метрики проверки токенов
func NewCredentialMetrics(registry *prometheus.Registry) CredentialMetrics {
	return &credentialMetrics{
		keySetFetches: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "jwks_fetches_total",
				Help: "Key set fetches by provider domain and outcome",
			},
			[]string{"domain", "outcome"},
		),
		validations: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "credential_validations_total",
				Help: "Credential validations by result kind",
			},
			[]string{"result"},
		),
	}
}

func (m *credentialMetrics) IncKeySetFetch(domain, outcome string) {
	m.keySetFetches.WithLabelValues(domain, outcome).Inc()
}

func (m *credentialMetrics) IncValidation(result string) {
	m.validations.WithLabelValues(result).Inc()
}

type nopCredentialMetrics struct{}

// NopCredentialMetrics возвращает метрики, которые ничего не записывают
func NopCredentialMetrics() CredentialMetrics { return nopCredentialMetrics{} }

func (nopCredentialMetrics) IncKeySetFetch(string, string) {}
func (nopCredentialMetrics) IncValidation(string)          {}
