package domain

import "strings"

// StripeIDKey ключ в app_metadata, под которым хранится ID клиента Stripe
const StripeIDKey = "stripe_id"

// Identity представляет пользователя у провайдера идентификации
type Identity struct {
	UserID       string         `json:"user_id"`
	Email        string         `json:"email,omitempty"`
	Name         string         `json:"name,omitempty"`
	GivenName    string         `json:"given_name,omitempty"`
	FamilyName   string         `json:"family_name,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// BillingCustomerID возвращает сохраненный ID клиента Stripe или пустую строку
func (i *Identity) BillingCustomerID() string {
	if i == nil || i.AppMetadata == nil {
		return ""
	}
	id, _ := i.AppMetadata[StripeIDKey].(string)
	return id
}

// DisplayName собирает имя клиента из имени и фамилии
func (i *Identity) DisplayName() string {
	return strings.TrimSpace(i.GivenName + " " + i.FamilyName)
}

// BillingCustomer представляет клиента платежного провайдера
type BillingCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
