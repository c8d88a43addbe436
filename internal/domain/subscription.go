package domain

// SubscriptionStatus статус подписки клиента
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "Active"
	SubscriptionStatusInactive SubscriptionStatus = "Inactive"
	SubscriptionStatusUnknown  SubscriptionStatus = "Unknown"
)

// InvoiceStatus статус последнего счета клиента
type InvoiceStatus string

const (
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusUnpaid  InvoiceStatus = "Unpaid"
	InvoiceStatusUnknown InvoiceStatus = "Unknown"
)

// Price представляет цену продукта из каталога
type Price struct {
	ID                string         `json:"price_id"`
	Currency          string         `json:"currency"`
	UnitAmount        int64          `json:"unit_amount"`
	RecurringInterval *string        `json:"recurring_interval"`
	Metadata          map[string]any `json:"metadata"`
}

// Product представляет продукт (план подписки) со списком цен
type Product struct {
	ID          string         `json:"product_id"`
	Name        string         `json:"product_name"`
	Description *string        `json:"description"`
	Active      bool           `json:"active"`
	Images      []string       `json:"images"`
	Metadata    map[string]any `json:"metadata"`
	Prices      []Price        `json:"prices"`
}
