package stripe

import (
	"context"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"

	"github.com/stripe/stripe-go/v78"
)

// ListProducts возвращает все продукты Stripe вместе с их ценами.
func (sc *stripeClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	params := &stripe.ProductListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	products := make([]domain.Product, 0)
	it := sc.client.Products.List(params)
	for it.Next() {
		product := toDomainProduct(it.Product())

		prices, err := sc.listPrices(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		product.Prices = prices
		products = append(products, product)
	}
	if err := it.Err(); err != nil {
		logStripeError(sc.log, "ListProducts", err)
		return nil, toDomainError("list products", err)
	}

	sc.log.Infow("Stripe catalog fetched", "products", len(products))
	return products, nil
}

func (sc *stripeClient) listPrices(ctx context.Context, productID string) ([]domain.Price, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	prices := make([]domain.Price, 0)
	it := sc.client.Prices.List(params)
	for it.Next() {
		prices = append(prices, toDomainPrice(it.Price()))
	}
	if err := it.Err(); err != nil {
		logStripeError(sc.log, "ListPrices", err)
		return nil, toDomainError("list prices", err)
	}
	return prices, nil
}
