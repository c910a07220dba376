package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrVerificationFailed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrProcessorDeclined),
		errors.Is(err, domain.ErrGatewayRejected), errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrGatewayNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// statusForCode maps a result error code onto an HTTP status.
func statusForCode(code string) int {
	switch code {
	case "GATEWAY_NOT_CONFIGURED":
		return http.StatusServiceUnavailable
	case "TRANSPORT_ERROR":
		return http.StatusBadGateway
	case "STATE_ERROR", "MISSING_PLAN", "NO_ALLOCATIONS", "INVALID_PERIOD":
		return http.StatusConflict
	}
	return http.StatusPaymentRequired
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := domain.Message(err)
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorCode: domain.ErrorCode(err),
	})
}
