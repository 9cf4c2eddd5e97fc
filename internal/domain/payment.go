package domain

import "time"

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusApproved  PaymentStatus = "APPROVED"
	PaymentStatusCanceled  PaymentStatus = "CANCELED"
)

// PaymentMethod represents how an approved payment was settled.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "CARD"
)

// Payment is a single payment attempt identified by its payment key.
// Optional fields stay nil until the transition that sets them happens.
type Payment struct {
	PaymentKey string
	OrderID    string
	Amount     int64 // minor currency units
	Status     PaymentStatus

	Method     *PaymentMethod
	ApprovedAt *time.Time
	ReceiptURL *string

	CanceledAt     *time.Time
	CanceledAmount *int64
	CancelReason   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPayment returns a payment in INITIATED state.
func NewPayment(paymentKey, orderID string, amount int64, now time.Time) *Payment {
	return &Payment{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
		Status:     PaymentStatusInitiated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Matches reports whether orderID and amount are the ones this payment was created with.
func (p *Payment) Matches(orderID string, amount int64) bool {
	return p.OrderID == orderID && p.Amount == amount
}

// Approve moves the payment to APPROVED. Callers check the status first.
func (p *Payment) Approve(method PaymentMethod, receiptURL string, at time.Time) {
	p.Status = PaymentStatusApproved
	p.Method = &method
	p.ReceiptURL = &receiptURL
	p.ApprovedAt = &at
	p.UpdatedAt = at
}

// Cancel moves the payment to CANCELED. Callers check the status first.
func (p *Payment) Cancel(reason string, amount int64, at time.Time) {
	p.Status = PaymentStatusCanceled
	p.CancelReason = &reason
	p.CanceledAmount = &amount
	p.CanceledAt = &at
	p.UpdatedAt = at
}

// Clone returns a deep copy so the copy shares no pointers with p.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	c.Method = clonePtr(p.Method)
	c.ApprovedAt = clonePtr(p.ApprovedAt)
	c.ReceiptURL = clonePtr(p.ReceiptURL)
	c.CanceledAt = clonePtr(p.CanceledAt)
	c.CanceledAmount = clonePtr(p.CanceledAmount)
	c.CancelReason = clonePtr(p.CancelReason)
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
