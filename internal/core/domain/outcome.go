package domain

import (
	"fmt"
	"strings"
)

// OutcomeKind classifies a processor result. Every submission attempt ends
// in exactly one kind; transport failures are reported as errors instead.
type OutcomeKind string

const (
	OutcomeSuccess           OutcomeKind = "success"
	OutcomeValidationError   OutcomeKind = "validation_error"
	OutcomeProcessorDeclined OutcomeKind = "processor_declined"
	OutcomeGatewayRejected   OutcomeKind = "gateway_rejected"
	OutcomeFailed            OutcomeKind = "failed"
)

// ValidationIssue is one itemized processor validation error.
type ValidationIssue struct {
	Attribute string `json:"attribute"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Outcome is the closed result of a sale, subscription or refund call.
type Outcome struct {
	Kind               OutcomeKind       `json:"kind"`
	TransactionID      string            `json:"transaction_id,omitempty"`
	SubscriptionID     string            `json:"subscription_id,omitempty"`
	SubscriptionStatus string            `json:"subscription_status,omitempty"`
	Errors             []ValidationIssue `json:"errors,omitempty"`
	Reason             string            `json:"reason,omitempty"`
}

// Success builds a successful transaction outcome.
func Success(transactionID string) *Outcome {
	return &Outcome{Kind: OutcomeSuccess, TransactionID: transactionID}
}

// Validation builds a validation-error outcome.
func Validation(issues []ValidationIssue) *Outcome {
	return &Outcome{Kind: OutcomeValidationError, Errors: issues}
}

// Declined builds a processor-declined outcome.
func Declined(reason string) *Outcome {
	return &Outcome{Kind: OutcomeProcessorDeclined, Reason: reason}
}

// Rejected builds a gateway-rejected outcome.
func Rejected(reason string) *Outcome {
	return &Outcome{Kind: OutcomeGatewayRejected, Reason: reason}
}

// Failed builds a generic failure outcome.
func Failed(reason string) *Outcome {
	return &Outcome{Kind: OutcomeFailed, Reason: reason}
}

// Succeeded reports whether the processor accepted the request.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Kind == OutcomeSuccess
}

// Err maps a failed outcome to its sentinel error, nil on success.
func (o *Outcome) Err() error {
	if o == nil {
		return ErrTransport
	}
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeValidationError:
		return ErrValidation
	case OutcomeProcessorDeclined:
		return ErrProcessorDeclined
	case OutcomeGatewayRejected:
		return ErrGatewayRejected
	}
	return ErrPaymentFailed
}

// Generic notice shown when the processor gave no usable reason.
const genericFailureNotice = "Donation not processed successfully in payment gateway."

// Notice is the donor-facing message for a failed outcome.
func (o *Outcome) Notice() string {
	if o == nil {
		return genericFailureNotice
	}
	switch o.Kind {
	case OutcomeValidationError:
		if len(o.Errors) == 0 {
			return genericFailureNotice
		}
		lines := make([]string, 0, len(o.Errors))
		for _, issue := range o.Errors {
			lines = append(lines, fmt.Sprintf("[%s] %s", issue.Code, issue.Message))
		}
		return strings.Join(lines, "\n")
	case OutcomeProcessorDeclined, OutcomeGatewayRejected:
		if o.Reason != "" {
			return o.Reason
		}
	}
	return genericFailureNotice
}

// LogLine is the audit-log entry for a failed outcome.
func (o *Outcome) LogLine() string {
	if o == nil {
		return "Braintree error: no result"
	}
	switch o.Kind {
	case OutcomeValidationError:
		return fmt.Sprintf("Braintree validation error: %s", strings.ReplaceAll(o.Notice(), "\n", "; "))
	case OutcomeProcessorDeclined:
		return fmt.Sprintf("Braintree processor declined: %s", o.Reason)
	case OutcomeGatewayRejected:
		return fmt.Sprintf("Braintree gateway rejected: %s", o.Reason)
	}
	return fmt.Sprintf("Braintree error: %s", o.Reason)
}
