package memory

import (
	"context"
	"sync"

	"payments/internal/domain"
	"payments/internal/repository"
)

// PaymentRepository is an in-memory implementation of repository.PaymentRepository.
// Records are copied on the way in and on the way out, so callers never share
// memory with the stored value.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
}

// NewPaymentRepository creates an empty in-memory payment repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

// Ensure interface is satisfied.
var _ repository.PaymentRepository = (*PaymentRepository)(nil)

// FindByKey retrieves a payment by its payment key.
// Returns nil if no payment exists with the given key.
func (r *PaymentRepository) FindByKey(ctx context.Context, paymentKey string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[paymentKey]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// Save upserts a payment by its payment key. Last writer wins.
func (r *PaymentRepository) Save(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if payment == nil || payment.PaymentKey == "" {
		return nil, repository.ErrInvalidPayment
	}

	stored := payment.Clone()

	r.mu.Lock()
	r.payments[stored.PaymentKey] = stored
	r.mu.Unlock()

	return stored.Clone(), nil
}

// Len returns the number of stored payments.
func (r *PaymentRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.payments)
}
