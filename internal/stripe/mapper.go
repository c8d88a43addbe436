package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"

	"github.com/stripe/stripe-go/v78"
)

// toDomainCustomer преобразует клиента Stripe в доменную модель
func toDomainCustomer(cus *stripe.Customer) *domain.BillingCustomer {
	return &domain.BillingCustomer{
		ID:    cus.ID,
		Email: cus.Email,
		Name:  cus.Name,
	}
}

// toDomainProduct преобразует продукт Stripe; цены заполняются отдельно
func toDomainProduct(p *stripe.Product) domain.Product {
	product := domain.Product{
		ID:       p.ID,
		Name:     p.Name,
		Active:   p.Active,
		Images:   p.Images,
		Metadata: DecodeMetadata(p.Metadata),
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	if p.Description != "" {
		description := p.Description
		product.Description = &description
	}
	return product
}

// toDomainPrice преобразует цену Stripe
func toDomainPrice(p *stripe.Price) domain.Price {
	price := domain.Price{
		ID:         p.ID,
		Currency:   string(p.Currency),
		UnitAmount: p.UnitAmount,
		Metadata:   DecodeMetadata(p.Metadata),
	}
	if p.Recurring != nil {
		interval := string(p.Recurring.Interval)
		price.RecurringInterval = &interval
	}
	return price
}

// DecodeMetadata раскрывает значения метаданных, записанные как JSON объекты.
// Значения, начинающиеся с '{', но не являющиеся JSON, остаются строками.
func DecodeMetadata(metadata map[string]string) map[string]any {
	if len(metadata) == 0 {
		return nil
	}

	decoded := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if strings.HasPrefix(value, "{") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(value), &obj); err == nil {
				decoded[key] = obj
				continue
			}
		}
		decoded[key] = value
	}
	return decoded
}

// toDomainError переводит ошибку Stripe в доменную.
// Отказ API становится BillingProviderError с сообщением Stripe,
// сетевые сбои - ErrServiceUnavailable.
func toDomainError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return domain.NewBillingProviderError(
			op,
			string(stripeErr.Code),
			string(stripeErr.Type),
			stripeErr.Msg,
			stripeErr.HTTPStatusCode,
			err,
		)
	}
	return fmt.Errorf("stripe: failed to %s: %w: %w", op, domain.ErrServiceUnavailable, err)
}
