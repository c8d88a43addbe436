package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	billing *fakeBilling
	metrics *fakeMetrics
	service *PaymentService
}

func newPaymentFixture(users ...domain.Identity) *paymentFixture {
	directory := newFakeDirectory(users...)
	billing := newFakeBilling()
	m := newFakeMetrics()
	log := testLogger()

	reconciler := NewReconciler(directory, billing, lock.NewLocalLocker(), &fakeProducer{}, m, log)
	issuer := NewSessionIssuer(billing, "https://plugin.example.com", m, log)
	return &paymentFixture{
		billing: billing,
		metrics: m,
		service: NewPaymentService(reconciler, issuer, "https://plugin.example.com/", log),
	}
}

var linkedIdentity = domain.Identity{
	UserID:      "auth0|abc123",
	Email:       "a@x.com",
	AppMetadata: map[string]any{"stripe_id": "cus_1"},
}

func TestCheckoutLink(t *testing.T) {
	f := newPaymentFixture(linkedIdentity)

	url, err := f.service.CheckoutLink(context.Background(), "auth0|abc123", "price_1")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", url)

	require.Len(t, f.billing.checkouts, 1)
	params := f.billing.checkouts[0]
	assert.Equal(t, "cus_1", params.CustomerID)
	assert.Equal(t, "price_1", params.PriceID)
	assert.Equal(t, "https://plugin.example.com/payment/success", params.SuccessURL)
	assert.Equal(t, "https://plugin.example.com/payment/failure", params.CancelURL)
	assert.NotEmpty(t, params.IdempotencyKey)
	assert.Equal(t, 1, f.metrics.sessions["checkout"])
}

func TestCheckoutLink_FreshIdempotencyKeyPerSession(t *testing.T) {
	f := newPaymentFixture(linkedIdentity)

	for i := 0; i < 2; i++ {
		_, err := f.service.CheckoutLink(context.Background(), "auth0|abc123", "price_1")
		require.NoError(t, err)
	}
	require.Len(t, f.billing.checkouts, 2)
	assert.NotEqual(t, f.billing.checkouts[0].IdempotencyKey, f.billing.checkouts[1].IdempotencyKey)
}

func TestCheckoutLink_UnknownPriceRewritten(t *testing.T) {
	f := newPaymentFixture(linkedIdentity)
	f.billing.checkoutErr = domain.NewBillingProviderError(
		"create checkout session", "resource_missing", "invalid_request_error",
		"No such price: price_bad", http.StatusBadRequest, errBoom,
	)

	_, err := f.service.CheckoutLink(context.Background(), "auth0|abc123", "price_bad")
	require.Error(t, err)

	var providerErr *domain.BillingProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "The price ID price_bad is invalid.", providerErr.Message)
	assert.Equal(t, http.StatusBadRequest, domain.HTTPStatus(err))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 0, f.metrics.sessions["checkout"])
}

func TestCheckoutLink_OtherProviderMessageUnchanged(t *testing.T) {
	f := newPaymentFixture(linkedIdentity)
	f.billing.checkoutErr = domain.NewBillingProviderError(
		"create checkout session", "", "invalid_request_error",
		"This customer has no attached payment source", http.StatusBadRequest, nil,
	)

	_, err := f.service.CheckoutLink(context.Background(), "auth0|abc123", "price_1")
	var providerErr *domain.BillingProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "This customer has no attached payment source", providerErr.Message)
}

func TestCheckoutLink_IdentityNotFound(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.service.CheckoutLink(context.Background(), "auth0|missing", "price_1")
	assert.True(t, errors.Is(err, domain.ErrIdentityNotFound))
	assert.Empty(t, f.billing.checkouts)
}

func TestPortalLink(t *testing.T) {
	f := newPaymentFixture(linkedIdentity)

	url, err := f.service.PortalLink(context.Background(), "auth0|abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session/bps_1", url)
	assert.Equal(t, []string{"https://plugin.example.com"}, f.billing.portalReturns)
	require.Len(t, f.billing.portalKeys, 1)
	assert.NotEmpty(t, f.billing.portalKeys[0])
	assert.Equal(t, 1, f.metrics.sessions["portal"])
}

func TestStatus(t *testing.T) {
	f := newPaymentFixture(linkedIdentity)
	f.billing.active = true
	f.billing.invoice, f.billing.invoiceFound = "paid", true

	status, err := f.service.Status(context.Background(), "auth0|abc123")
	require.NoError(t, err)
	assert.Equal(t, &PaymentStatus{
		Subscription: domain.SubscriptionStatusActive,
		Invoice:      domain.InvoiceStatusPaid,
	}, status)
}

func TestRewriteUnknownPrice_NonProviderError(t *testing.T) {
	assert.Equal(t, errBoom, rewriteUnknownPrice(errBoom, "price_1"))
}
