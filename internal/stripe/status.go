package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v78"
)

// HasActiveSubscription проверяет наличие хотя бы одной активной подписки.
func (sc *stripeClient) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	it := sc.client.Subscriptions.List(params)
	active := it.Next()
	if err := it.Err(); err != nil {
		logStripeError(sc.log, "ListSubscriptions", err)
		return false, toDomainError("list subscriptions", err)
	}

	sc.log.Debugw("Stripe subscription status checked", "stripeCustomerID", customerID, "active", active)
	return active, nil
}

// LatestInvoiceStatus возвращает статус самого последнего счета клиента.
func (sc *stripeClient) LatestInvoiceStatus(ctx context.Context, customerID string) (string, bool, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	it := sc.client.Invoices.List(params)
	if !it.Next() {
		if err := it.Err(); err != nil {
			logStripeError(sc.log, "ListInvoices", err)
			return "", false, toDomainError("list invoices", err)
		}
		return "", false, nil
	}

	inv := it.Invoice()
	return string(inv.Status), true, nil
}
