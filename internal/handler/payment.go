package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"payments/internal/domain"
	"payments/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreatePaymentRequest is the HTTP request body for creating a payment.
type CreatePaymentRequest struct {
	PaymentKey string `json:"paymentKey" binding:"required"`
	OrderID    string `json:"orderId" binding:"required"`
	Amount     *int64 `json:"amount" binding:"required,gt=0"`
}

// ConfirmPaymentRequest is the HTTP request body for confirming a payment.
type ConfirmPaymentRequest struct {
	PaymentKey string `json:"paymentKey" binding:"required"`
	OrderID    string `json:"orderId" binding:"required"`
	Amount     *int64 `json:"amount" binding:"required,gt=0"`
}

// CancelPaymentRequest is the HTTP request body for canceling a payment.
type CancelPaymentRequest struct {
	CancelReason string `json:"cancelReason" binding:"required"`
	CancelAmount *int64 `json:"cancelAmount"`
}

// CreatePaymentResponse is returned by POST /v1/payments.
type CreatePaymentResponse struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
}

// ReceiptResponse points at the receipt of an approved payment.
type ReceiptResponse struct {
	URL string `json:"url"`
}

// ConfirmPaymentResponse is returned by POST /v1/payments/confirm.
type ConfirmPaymentResponse struct {
	PaymentKey  string          `json:"paymentKey"`
	OrderID     string          `json:"orderId"`
	Method      string          `json:"method"`
	ApprovedAt  string          `json:"approvedAt"`
	TotalAmount int64           `json:"totalAmount"`
	Status      string          `json:"status"`
	Receipt     ReceiptResponse `json:"receipt"`
}

// CancelPaymentResponse is returned by POST /v1/payments/:paymentKey/cancel.
type CancelPaymentResponse struct {
	Status     string `json:"status"`
	CanceledAt string `json:"canceledAt"`
}

// PaymentResponse is the full snapshot returned by GET /v1/payments/:paymentKey.
type PaymentResponse struct {
	PaymentKey     string  `json:"paymentKey"`
	OrderID        string  `json:"orderId"`
	Amount         int64   `json:"amount"`
	Status         string  `json:"status"`
	Method         *string `json:"method,omitempty"`
	ApprovedAt     *string `json:"approvedAt,omitempty"`
	ReceiptURL     *string `json:"receiptUrl,omitempty"`
	CanceledAt     *string `json:"canceledAt,omitempty"`
	CanceledAmount *int64  `json:"canceledAmount,omitempty"`
	CancelReason   *string `json:"cancelReason,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

// CreatePayment handles POST /v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	payment, err := h.paymentService.Create(c.Request.Context(), req.PaymentKey, req.OrderID, *req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CreatePaymentResponse{
		PaymentKey: payment.PaymentKey,
		OrderID:    payment.OrderID,
		Status:     string(payment.Status),
	})
}

// ConfirmPayment handles POST /v1/payments/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	payment, err := h.paymentService.Confirm(c.Request.Context(), req.PaymentKey, req.OrderID, *req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ConfirmPaymentResponse{
		PaymentKey:  payment.PaymentKey,
		OrderID:     payment.OrderID,
		Method:      string(deref(payment.Method)),
		ApprovedAt:  formatInstant(deref(payment.ApprovedAt)),
		TotalAmount: payment.Amount,
		Status:      string(payment.Status),
		Receipt:     ReceiptResponse{URL: deref(payment.ReceiptURL)},
	})
}

// CancelPayment handles POST /v1/payments/:paymentKey/cancel
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	var req CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	payment, err := h.paymentService.Cancel(c.Request.Context(), c.Param("paymentKey"), req.CancelReason, req.CancelAmount)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CancelPaymentResponse{
		Status:     string(payment.Status),
		CanceledAt: formatInstant(deref(payment.CanceledAt)),
	})
}

// GetPayment handles GET /v1/payments/:paymentKey
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.Get(c.Request.Context(), c.Param("paymentKey"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		PaymentKey:     p.PaymentKey,
		OrderID:        p.OrderID,
		Amount:         p.Amount,
		Status:         string(p.Status),
		ReceiptURL:     p.ReceiptURL,
		CanceledAmount: p.CanceledAmount,
		CancelReason:   p.CancelReason,
		CreatedAt:      formatInstant(p.CreatedAt),
		UpdatedAt:      formatInstant(p.UpdatedAt),
	}
	if p.Method != nil {
		method := string(*p.Method)
		resp.Method = &method
	}
	if p.ApprovedAt != nil {
		at := formatInstant(*p.ApprovedAt)
		resp.ApprovedAt = &at
	}
	if p.CanceledAt != nil {
		at := formatInstant(*p.CanceledAt)
		resp.CanceledAt = &at
	}
	return resp
}

// formatInstant renders t as an ISO-8601 instant in UTC.
func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
