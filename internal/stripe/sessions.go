package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v78"
)

// CreateCheckoutSession создает сессию Checkout в режиме подписки с одной позицией.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(p.CustomerID),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(p.IdempotencyKey)
	}

	session, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return "", toDomainError("create checkout session", err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", session.ID, "stripeCustomerID", p.CustomerID, "priceID", p.PriceID)
	return session.URL, nil
}

// CreatePortalSession создает сессию портала клиента.
func (sc *stripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL, idempotencyKey string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(customerID),
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}

	session, err := sc.client.BillingPortalSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreatePortalSession", err)
		return "", toDomainError("create portal session", err)
	}

	sc.log.Infow("Stripe portal session created", "sessionID", session.ID, "stripeCustomerID", customerID)
	return session.URL, nil
}
