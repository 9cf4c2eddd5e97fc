package repository

import (
	"context"

	"payments/internal/domain"
)

// PaymentRepository is the keyed store for payments.
// It holds raw records only; status rules belong to the service layer.
type PaymentRepository interface {
	// FindByKey retrieves a payment by its payment key.
	// Returns nil if no payment exists with the given key.
	FindByKey(ctx context.Context, paymentKey string) (*domain.Payment, error)

	// Save upserts a payment by its payment key and returns the stored value.
	Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
}
