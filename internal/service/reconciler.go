package service

import (
	"context"
	"fmt"
	"maps"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/kafka"
	"github.com/Dhoini/Plugin-billing-service/internal/lock"
	"github.com/Dhoini/Plugin-billing-service/internal/metrics"
	"github.com/Dhoini/Plugin-billing-service/internal/stripe"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/google/uuid"
)

// IdentityDirectory доступ к пользователям провайдера идентификации
type IdentityDirectory interface {
	GetIdentity(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateMetadata(ctx context.Context, identityID string, appMetadata, userMetadata map[string]any) (*domain.Identity, error)
}

// Reconciler связывает пользователя провайдера идентификации с клиентом Stripe.
// ID клиента хранится в app_metadata пользователя под ключом stripe_id.
type Reconciler struct {
	directory IdentityDirectory
	billing   stripe.Client
	locker    lock.Locker
	events    kafka.Producer
	metrics   metrics.BillingMetrics
	log       *logger.Logger
}

// NewReconciler создает Reconciler. events и m могут быть nil.
func NewReconciler(
	directory IdentityDirectory,
	billing stripe.Client,
	locker lock.Locker,
	events kafka.Producer,
	m metrics.BillingMetrics,
	log *logger.Logger,
) *Reconciler {
	if events == nil {
		log.Warnw("Kafka producer is nil, billing events will only be logged.")
		events = kafka.NewLogProducer(log)
	}
	if m == nil {
		m = metrics.NopBillingMetrics()
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Reconciler{
		directory: directory,
		billing:   billing,
		locker:    locker,
		events:    events,
		metrics:   m,
		log:       log,
	}
}

// customerIdempotencyKey одинаков для повторных попыток создать клиента для того же пользователя
func customerIdempotencyKey(identity *domain.Identity) string {
	name := identity.UserID + "\x00" + identity.Email + "\x00" + identity.DisplayName()
	return "customer-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// ResolveCustomer возвращает ID клиента Stripe для пользователя, создавая клиента при необходимости.
// Чтение, создание и запись выполняются под блокировкой по identityID.
func (r *Reconciler) ResolveCustomer(ctx context.Context, identityID string) (string, error) {
	unlock, err := r.locker.Lock(ctx, identityID)
	if err != nil {
		r.metrics.IncCustomerResolutionFailed("lock")
		return "", fmt.Errorf("resolve customer for %s: %w", identityID, err)
	}
	defer unlock()

	identity, err := r.directory.GetIdentity(ctx, identityID)
	if err != nil {
		r.log.Errorw("Failed to fetch identity", "identityID", identityID, "error", err)
		r.metrics.IncCustomerResolutionFailed("identity")
		return "", fmt.Errorf("%w: %w", domain.ErrIdentityNotFound, err)
	}

	if customerID := identity.BillingCustomerID(); customerID != "" {
		r.log.Debugw("Identity already linked to Stripe customer", "identityID", identityID, "stripeCustomerID", customerID)
		r.metrics.IncCustomerResolved(metrics.ResolvedFromMetadata)
		return customerID, nil
	}

	customer, err := r.billing.CreateCustomer(ctx, stripe.CustomerParams{
		IdentityID:     identityID,
		Email:          identity.Email,
		Name:           identity.DisplayName(),
		IdempotencyKey: customerIdempotencyKey(identity),
	})
	if err != nil {
		r.metrics.IncCustomerResolutionFailed("billing_provider")
		return "", err
	}

	// Документ заменяется целиком, поэтому сохраняем все прочитанные ключи
	appMetadata := make(map[string]any, len(identity.AppMetadata)+1)
	maps.Copy(appMetadata, identity.AppMetadata)
	appMetadata[domain.StripeIDKey] = customer.ID

	if _, err := r.directory.UpdateMetadata(ctx, identityID, appMetadata, nil); err != nil {
		// Клиент уже создан в Stripe: возвращаем его ID, расхождение уходит в сверку
		r.log.Errorw("Stripe customer created but not linked to identity",
			"identityID", identityID,
			"stripeCustomerID", customer.ID,
			"error", err,
		)
		r.metrics.IncUnlinkedCustomer()
		r.publish(ctx, domain.NewBillingEvent(domain.BillingEventCustomerUnlinked, identityID, customer.ID, err))
		return customer.ID, nil
	}

	r.log.Infow("Identity linked to new Stripe customer", "identityID", identityID, "stripeCustomerID", customer.ID)
	r.metrics.IncCustomerResolved(metrics.ResolvedByCreation)
	r.publish(ctx, domain.NewBillingEvent(domain.BillingEventCustomerCreated, identityID, customer.ID, nil))
	return customer.ID, nil
}

// Customer разрешает и загружает клиента Stripe для пользователя
func (r *Reconciler) Customer(ctx context.Context, identityID string) (*domain.BillingCustomer, error) {
	customerID, err := r.ResolveCustomer(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return r.billing.GetCustomer(ctx, customerID)
}

// SubscriptionStatus возвращает Active, если у клиента есть активная подписка.
// Unknown, если клиента или подписки не удалось получить.
func (r *Reconciler) SubscriptionStatus(ctx context.Context, identityID string) (domain.SubscriptionStatus, error) {
	customerID, err := r.ResolveCustomer(ctx, identityID)
	if err != nil {
		return domain.SubscriptionStatusUnknown, err
	}
	customer, err := r.billing.GetCustomer(ctx, customerID)
	if err != nil {
		r.log.Warnw("Failed to retrieve Stripe customer", "identityID", identityID, "stripeCustomerID", customerID, "error", err)
		r.metrics.IncStatusLookup("subscription", string(domain.SubscriptionStatusUnknown))
		return domain.SubscriptionStatusUnknown, nil
	}

	status := domain.SubscriptionStatusInactive
	active, err := r.billing.HasActiveSubscription(ctx, customer.ID)
	switch {
	case err != nil:
		r.log.Warnw("Failed to check subscription status", "identityID", identityID, "stripeCustomerID", customer.ID, "error", err)
		status = domain.SubscriptionStatusUnknown
	case active:
		status = domain.SubscriptionStatusActive
	}

	r.metrics.IncStatusLookup("subscription", string(status))
	return status, nil
}

// LatestInvoiceStatus возвращает Paid, если последний счет клиента оплачен.
// Unknown, если счетов нет или их не удалось получить.
func (r *Reconciler) LatestInvoiceStatus(ctx context.Context, identityID string) (domain.InvoiceStatus, error) {
	customerID, err := r.ResolveCustomer(ctx, identityID)
	if err != nil {
		return domain.InvoiceStatusUnknown, err
	}
	customer, err := r.billing.GetCustomer(ctx, customerID)
	if err != nil {
		r.log.Warnw("Failed to retrieve Stripe customer", "identityID", identityID, "stripeCustomerID", customerID, "error", err)
		r.metrics.IncStatusLookup("invoice", string(domain.InvoiceStatusUnknown))
		return domain.InvoiceStatusUnknown, nil
	}

	status := domain.InvoiceStatusUnpaid
	invoiceStatus, found, err := r.billing.LatestInvoiceStatus(ctx, customer.ID)
	switch {
	case err != nil:
		r.log.Warnw("Failed to check invoice status", "identityID", identityID, "stripeCustomerID", customer.ID, "error", err)
		status = domain.InvoiceStatusUnknown
	case !found:
		status = domain.InvoiceStatusUnknown
	case invoiceStatus == "paid":
		status = domain.InvoiceStatusPaid
	}

	r.metrics.IncStatusLookup("invoice", string(status))
	return status, nil
}

func (r *Reconciler) publish(ctx context.Context, event domain.BillingEvent) {
	if err := r.events.Publish(ctx, event); err != nil {
		r.log.Errorw("Failed to publish billing event", "type", string(event.Type), "identityID", event.IdentityID, "error", err)
	}
}
