package domain

import "time"

// EventType names a payment lifecycle event.
type EventType string

const (
	EventPaymentApproved EventType = "payment.approved"
	EventPaymentCanceled EventType = "payment.canceled"
)

// PaymentEvent is published after a transition has been committed.
type PaymentEvent struct {
	Type       EventType     `json:"type"`
	PaymentKey string        `json:"paymentKey"`
	OrderID    string        `json:"orderId"`
	Amount     int64         `json:"amount"`
	Status     PaymentStatus `json:"status"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewPaymentEvent builds an event from the payment's current state.
func NewPaymentEvent(t EventType, p *Payment) PaymentEvent {
	return PaymentEvent{
		Type:       t,
		PaymentKey: p.PaymentKey,
		OrderID:    p.OrderID,
		Amount:     p.Amount,
		Status:     p.Status,
		OccurredAt: p.UpdatedAt,
	}
}
