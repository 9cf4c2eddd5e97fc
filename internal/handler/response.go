package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"payments/internal/service"
)

const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeProviderError  = "PROVIDER_ERROR"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code, body := mapError(err)
	_ = c.Error(err)
	c.JSON(code, body)
}

// respondInvalid sends a 400 for a request that failed binding or validation.
func respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: codeInvalidRequest, Message: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapError maps service errors to an HTTP status and body.
// Anything that is not a payment business error is a provider error.
func mapError(err error) (int, ErrorResponse) {
	if pe, ok := service.AsPaymentError(err); ok {
		return pe.Status, ErrorResponse{Code: pe.Code, Message: pe.Message}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: codeProviderError, Message: err.Error()}
}
