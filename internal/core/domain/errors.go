// Package domain contains the core business entities for the donation gateway.
package domain

import "errors"

// Domain errors - one per failure class the gateway distinguishes.
var (
	// ErrGatewayNotConfigured is returned when merchant id, public key or
	// private key is blank. No processor call is attempted.
	ErrGatewayNotConfigured = errors.New("braintree gateway is not configured")

	// ErrValidation is returned when the processor rejected the request data.
	ErrValidation = errors.New("processor validation error")

	// ErrProcessorDeclined is returned when the card issuer declined.
	ErrProcessorDeclined = errors.New("processor declined")

	// ErrGatewayRejected is returned when Braintree's fraud or risk rules rejected.
	ErrGatewayRejected = errors.New("gateway rejected")

	// ErrPaymentFailed is returned when the processor failed the request
	// without a more specific classification.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrNotFound is returned when a referenced record does not exist,
	// locally or in the processor.
	ErrNotFound = errors.New("not found")

	// ErrTransport is returned for network or SDK level failures.
	ErrTransport = errors.New("processor transport error")

	// ErrState is returned when a required local record is missing or invalid.
	ErrState = errors.New("invalid local state")

	// ErrVerificationFailed is returned when 3-D Secure verification failed.
	ErrVerificationFailed = errors.New("payment verification failed")

	// ErrWebhookValidationFailed is returned when bt_signature/bt_payload
	// are missing or do not verify.
	ErrWebhookValidationFailed = errors.New("webhook validation failed")

	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// ServiceError wraps errors with additional context.
type ServiceError struct {
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(err error, message, code string) *ServiceError {
	return &ServiceError{Err: err, Message: message, Code: code}
}

// ErrorCode returns the machine-readable code for err, preferring the code
// carried by a ServiceError.
func ErrorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Code != "" {
		return svcErr.Code
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGatewayNotConfigured):
		return "GATEWAY_NOT_CONFIGURED"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrProcessorDeclined):
		return "PROCESSOR_DECLINED"
	case errors.Is(err, ErrGatewayRejected):
		return "GATEWAY_REJECTED"
	case errors.Is(err, ErrPaymentFailed):
		return "PAYMENT_FAILED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrTransport):
		return "TRANSPORT_ERROR"
	case errors.Is(err, ErrState):
		return "STATE_ERROR"
	case errors.Is(err, ErrVerificationFailed):
		return "VERIFICATION_FAILED"
	case errors.Is(err, ErrWebhookValidationFailed):
		return "WEBHOOK_VALIDATION_FAILED"
	case errors.Is(err, ErrInvalidRequest):
		return "INVALID_REQUEST"
	}
	return "INTERNAL_ERROR"
}

// Message returns the human readable part of err: the ServiceError message
// when there is one, otherwise err.Error().
func Message(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
