package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
)

const (
	successPath = "/payment/success"
	failurePath = "/payment/failure"

	unknownPriceMarker = "No such price:"
)

// PaymentStatus сводный статус оплаты пользователя
type PaymentStatus struct {
	Subscription domain.SubscriptionStatus `json:"subscription"`
	Invoice      domain.InvoiceStatus      `json:"invoice"`
}

// PaymentService операции с платежами для аутентифицированного пользователя
type PaymentService struct {
	reconciler *Reconciler
	issuer     *SessionIssuer
	baseURL    string
	log        *logger.Logger
}

// NewPaymentService конструктор сервиса; baseURL - публичный адрес сервиса
func NewPaymentService(reconciler *Reconciler, issuer *SessionIssuer, baseURL string, log *logger.Logger) *PaymentService {
	return &PaymentService{
		reconciler: reconciler,
		issuer:     issuer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

// CheckoutLink возвращает ссылку на оформление подписки на цену priceID
func (s *PaymentService) CheckoutLink(ctx context.Context, identityID, priceID string) (string, error) {
	s.log.Infow("Creating Stripe checkout session", "identityID", identityID, "priceID", priceID)

	customer, err := s.reconciler.Customer(ctx, identityID)
	if err != nil {
		return "", err
	}

	url, err := s.issuer.CreateCheckoutSession(ctx, customer.ID, priceID, s.baseURL+successPath, s.baseURL+failurePath)
	if err != nil {
		return "", rewriteUnknownPrice(err, priceID)
	}
	return url, nil
}

// PortalLink возвращает ссылку на портал управления подпиской
func (s *PaymentService) PortalLink(ctx context.Context, identityID string) (string, error) {
	s.log.Infow("Creating Stripe portal link", "identityID", identityID)

	customer, err := s.reconciler.Customer(ctx, identityID)
	if err != nil {
		return "", err
	}
	return s.issuer.CreatePortalSession(ctx, customer.ID)
}

// Status возвращает статус подписки и последнего счета
func (s *PaymentService) Status(ctx context.Context, identityID string) (*PaymentStatus, error) {
	subscription, err := s.reconciler.SubscriptionStatus(ctx, identityID)
	if err != nil {
		return nil, err
	}
	invoice, err := s.reconciler.LatestInvoiceStatus(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatus{Subscription: subscription, Invoice: invoice}, nil
}

// rewriteUnknownPrice заменяет сообщение Stripe о неизвестной цене понятным пользователю
func rewriteUnknownPrice(err error, priceID string) error {
	var providerErr *domain.BillingProviderError
	if !errors.As(err, &providerErr) || !strings.Contains(providerErr.Message, unknownPriceMarker) {
		return err
	}
	rewritten := *providerErr
	rewritten.Message = fmt.Sprintf("The price ID %s is invalid.", priceID)
	return &rewritten
}
