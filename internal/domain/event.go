package domain

import (
	"time"

	"github.com/google/uuid"
)

// BillingEventType тип события биллинга
type BillingEventType string

const (
	// BillingEventCustomerCreated клиент Stripe создан и привязан к пользователю
	BillingEventCustomerCreated BillingEventType = "billing_customer.created"
	// BillingEventCustomerUnlinked клиент Stripe создан, но его ID не удалось записать в app_metadata
	BillingEventCustomerUnlinked BillingEventType = "billing_customer.unlinked"
)

// BillingEvent представляет событие для инструментов сверки
type BillingEvent struct {
	ID           uuid.UUID        `json:"id"`
	Type         BillingEventType `json:"type"`
	IdentityID   string           `json:"identity_id"`
	CustomerID   string           `json:"customer_id"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// NewBillingEvent создает событие с новым ID и текущим временем
func NewBillingEvent(eventType BillingEventType, identityID, customerID string, cause error) BillingEvent {
	event := BillingEvent{
		ID:         uuid.New(),
		Type:       eventType,
		IdentityID: identityID,
		CustomerID: customerID,
		Timestamp:  time.Now().UTC(),
	}
	if cause != nil {
		event.ErrorMessage = cause.Error()
	}
	return event
}
