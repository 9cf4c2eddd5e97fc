package repository

import "errors"

var (
	// ErrInvalidPayment is returned when a payment without a key is saved.
	ErrInvalidPayment = errors.New("payment has no payment key")
)
