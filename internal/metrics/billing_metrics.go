package metrics

import (
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Источники, из которых был получен ID клиента при сверке
const (
	ResolvedFromMetadata = "metadata"
	ResolvedByCreation   = "created"
)

// BillingMetrics интерфейс для метрик биллинга
type BillingMetrics interface {
	IncCustomerResolved(source string)
	IncCustomerResolutionFailed(reason string)
	IncUnlinkedCustomer()
	IncSessionCreated(kind string)
	IncStatusLookup(kind, status string)
}

type billingMetrics struct {
	log                *logger.Logger
	customersResolved  *prometheus.CounterVec
	resolutionFailures *prometheus.CounterVec
	unlinkedCustomers  prometheus.Counter
	sessionsCreated    *prometheus.CounterVec
	statusLookups      *prometheus.CounterVec
}

// NewBillingMetrics создает новые метрики биллинга
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	customersResolved := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_customer_resolutions_total",
			Help: "The total number of resolved billing customers by source",
		},
		[]string{"source"},
	)

	resolutionFailures := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_customer_resolution_failures_total",
			Help: "The total number of failed billing customer resolutions",
		},
		[]string{"reason"},
	)

	unlinkedCustomers := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "billing_unlinked_customers_total",
			Help: "Billing customers created whose ID could not be written back to the identity",
		},
	)

	sessionsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sessions_created_total",
			Help: "The total number of checkout and portal sessions created",
		},
		[]string{"kind"},
	)

	statusLookups := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_status_lookups_total",
			Help: "Subscription and invoice status lookups by result",
		},
		[]string{"kind", "status"},
	)

	return &billingMetrics{
		log:                log,
		customersResolved:  customersResolved,
		resolutionFailures: resolutionFailures,
		unlinkedCustomers:  unlinkedCustomers,
		sessionsCreated:    sessionsCreated,
		statusLookups:      statusLookups,
	}
}

// IncCustomerResolved увеличивает счетчик разрешенных клиентов
func (m *billingMetrics) IncCustomerResolved(source string) {
	m.customersResolved.WithLabelValues(source).Inc()
}

// IncCustomerResolutionFailed увеличивает счетчик неудачных сверок
func (m *billingMetrics) IncCustomerResolutionFailed(reason string) {
	m.resolutionFailures.WithLabelValues(reason).Inc()
}

// IncUnlinkedCustomer увеличивает счетчик клиентов-сирот
func (m *billingMetrics) IncUnlinkedCustomer() {
	m.log.Debugw("Unlinked billing customer recorded")
	m.unlinkedCustomers.Inc()
}

// IncSessionCreated увеличивает счетчик созданных сессий
func (m *billingMetrics) IncSessionCreated(kind string) {
	m.sessionsCreated.WithLabelValues(kind).Inc()
}

// IncStatusLookup учитывает результат запроса статуса
func (m *billingMetrics) IncStatusLookup(kind, status string) {
	m.statusLookups.WithLabelValues(kind, status).Inc()
}

type nopBillingMetrics struct{}

// NopBillingMetrics возвращает метрики, которые ничего не записывают
func NopBillingMetrics() BillingMetrics { return nopBillingMetrics{} }

func (nopBillingMetrics) IncCustomerResolved(string)         {}
func (nopBillingMetrics) IncCustomerResolutionFailed(string) {}
func (nopBillingMetrics) IncUnlinkedCustomer()               {}
func (nopBillingMetrics) IncSessionCreated(string)           {}
func (nopBillingMetrics) IncStatusLookup(string, string)     {}
