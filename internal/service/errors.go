package service

import (
	"errors"
	"net/http"
)

// ErrorKind classifies business failures of the payment state machine.
type ErrorKind int

const (
	// KindConflict means the request disagrees with the record already stored for the key.
	KindConflict ErrorKind = iota + 1
	// KindInvalidState means the operation is not valid for the payment's current status.
	KindInvalidState
	// KindNotFound means no payment exists for the key.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// PaymentError is a business failure returned by PaymentService.
// None of them are retryable without changing the request.
type PaymentError struct {
	Kind    ErrorKind
	Code    string
	Status  int
	Message string
}

func (e *PaymentError) Error() string {
	return e.Message
}

var (
	// ErrAmountMismatch is returned when a confirm reuses a payment key with a different amount or orderId.
	ErrAmountMismatch = &PaymentError{
		Kind:    KindConflict,
		Code:    "AMOUNT_MISMATCH",
		Status:  http.StatusConflict,
		Message: "Different amount or orderId for same paymentKey",
	}

	// ErrPartialMismatch is returned when a cancel amount differs from the authorized amount.
	ErrPartialMismatch = &PaymentError{
		Kind:    KindConflict,
		Code:    "PARTIAL_MISMATCH",
		Status:  http.StatusConflict,
		Message: "Partial cancel not supported",
	}

	// ErrAlreadyCanceled is returned when confirming a canceled payment.
	ErrAlreadyCanceled = &PaymentError{
		Kind:    KindInvalidState,
		Code:    "ALREADY_CANCELED",
		Status:  http.StatusUnprocessableEntity,
		Message: "Payment already canceled",
	}

	// ErrNotApproved is returned when canceling a payment that was never approved.
	ErrNotApproved = &PaymentError{
		Kind:    KindInvalidState,
		Code:    "NOT_APPROVED",
		Status:  http.StatusUnprocessableEntity,
		Message: "Payment not approved",
	}

	// ErrPaymentNotFound is returned when no payment exists for the key.
	ErrPaymentNotFound = &PaymentError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Status:  http.StatusNotFound,
		Message: "Payment not found",
	}
)

// AsPaymentError unwraps err into a *PaymentError if it is one.
func AsPaymentError(err error) (*PaymentError, bool) {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
