package service

import (
	"context"

	"github.com/Dhoini/Plugin-billing-service/internal/metrics"
	"github.com/Dhoini/Plugin-billing-service/internal/stripe"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/google/uuid"
)

// SessionIssuer создает сессии Stripe Checkout и портала клиента.
// Каждый запрос несет свой ключ идемпотентности: сетевой повтор внутри
// stripe-go не создаст вторую сессию.
type SessionIssuer struct {
	billing   stripe.Client
	returnURL string
	metrics   metrics.BillingMetrics
	log       *logger.Logger
}

// NewSessionIssuer создает SessionIssuer; returnURL - адрес возврата из портала
func NewSessionIssuer(billing stripe.Client, returnURL string, m metrics.BillingMetrics, log *logger.Logger) *SessionIssuer {
	if m == nil {
		m = metrics.NopBillingMetrics()
	}
	return &SessionIssuer{
		billing:   billing,
		returnURL: returnURL,
		metrics:   m,
		log:       log,
	}
}

// CreateCheckoutSession создает сессию подписки на одну цену в количестве 1
func (s *SessionIssuer) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	url, err := s.billing.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		CustomerID:     customerID,
		PriceID:        priceID,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	s.metrics.IncSessionCreated("checkout")
	return url, nil
}

// CreatePortalSession создает сессию портала для управления подпиской
func (s *SessionIssuer) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	url, err := s.billing.CreatePortalSession(ctx, customerID, s.returnURL, uuid.NewString())
	if err != nil {
		return "", err
	}
	s.metrics.IncSessionCreated("portal")
	return url, nil
}
