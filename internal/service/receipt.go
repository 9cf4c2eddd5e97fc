package service

import "strings"

// DefaultReceiptBaseURL is used when no receipt base URL is configured.
const DefaultReceiptBaseURL = "https://pay.local/receipts"

// ReceiptService derives receipt URLs for approved payments.
type ReceiptService struct {
	baseURL string
}

// NewReceiptService creates a new ReceiptService. A trailing slash on baseURL is ignored.
func NewReceiptService(baseURL string) *ReceiptService {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultReceiptBaseURL
	}
	return &ReceiptService{baseURL: baseURL}
}

// URL returns the receipt URL for a payment key. It is a pure function of the key.
func (s *ReceiptService) URL(paymentKey string) string {
	return s.baseURL + "/" + paymentKey
}
