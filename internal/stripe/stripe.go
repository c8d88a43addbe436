package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключ метаданных для связи Stripe Customer с пользователем провайдера идентификации
	metadataIdentityIDKey = "identity_id"
)

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCustomer создает нового клиента в Stripe.
	// Повтор с тем же idempotencyKey в течение 24 часов возвращает того же клиента.
	CreateCustomer(ctx context.Context, params CustomerParams) (*domain.BillingCustomer, error)

	// GetCustomer возвращает клиента по Stripe ID.
	GetCustomer(ctx context.Context, customerID string) (*domain.BillingCustomer, error)

	// CreateCheckoutSession создает сессию оформления подписки и возвращает ее URL.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// CreatePortalSession создает сессию портала клиента и возвращает ее URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL, idempotencyKey string) (string, error)

	// HasActiveSubscription проверяет, есть ли у клиента активная подписка.
	HasActiveSubscription(ctx context.Context, customerID string) (bool, error)

	// LatestInvoiceStatus возвращает статус последнего счета клиента.
	// found=false, если счетов нет.
	LatestInvoiceStatus(ctx context.Context, customerID string) (status string, found bool, err error)

	// ListProducts возвращает каталог продуктов с ценами.
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// CustomerParams параметры создания клиента
type CustomerParams struct {
	IdentityID     string
	Email          string
	Name           string
	IdempotencyKey string
}

// CheckoutParams параметры сессии оформления подписки
type CheckoutParams struct {
	CustomerID     string
	PriceID        string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// Config конфигурация клиента Stripe
type Config struct {
	APIKey string
	// BaseURL переопределяет адрес API (для тестов)
	BaseURL string
	// MaxNetworkRetries число сетевых повторов внутри stripe-go
	MaxNetworkRetries int64
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(cfg Config, log *logger.Logger) Client {
	backendConfig := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BaseURL != "" {
		backendConfig.URL = stripe.String(cfg.BaseURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	}

	sc := &client.API{}
	sc.Init(cfg.APIKey, backends)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// CreateCustomer создает нового клиента в Stripe.
func (sc *stripeClient) CreateCustomer(ctx context.Context, p CustomerParams) (*domain.BillingCustomer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(p.Email),
		Name:  stripe.String(p.Name),
	}
	if p.IdentityID != "" {
		params.Metadata = map[string]string{metadataIdentityIDKey: p.IdentityID}
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCustomer", err)
		return nil, toDomainError("create customer", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "identityID", p.IdentityID)
	return toDomainCustomer(cus), nil
}

// GetCustomer возвращает клиента Stripe; удаленный клиент считается отсутствующим.
func (sc *stripeClient) GetCustomer(ctx context.Context, customerID string) (*domain.BillingCustomer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := sc.client.Customers.Get(customerID, params)
	if err != nil {
		logStripeError(sc.log, "GetCustomer", err)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, fmt.Errorf("%w: %w", domain.ErrCustomerNotFound, toDomainError("get customer", err))
		}
		return nil, toDomainError("get customer", err)
	}
	if cus.Deleted {
		sc.log.Warnw("Stripe customer is deleted", "stripeCustomerID", customerID)
		return nil, domain.NewNotFoundError("billing customer", customerID)
	}

	return toDomainCustomer(cus), nil
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
