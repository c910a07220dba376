package domain

import (
	"errors"
	"testing"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name        string
		outcome     *Outcome
		wantErr     error
		wantNotice  string
		wantLogLine string
	}{
		{
			name:    "success",
			outcome: Success("txn_1"),
		},
		{
			name: "validation errors are itemized",
			outcome: Validation([]ValidationIssue{
				{Attribute: "amount", Code: "81503", Message: "Amount is an invalid format."},
				{Attribute: "credit_card", Code: "81715", Message: "Credit card number is invalid."},
			}),
			wantErr:     ErrValidation,
			wantNotice:  "[81503] Amount is an invalid format.\n[81715] Credit card number is invalid.",
			wantLogLine: "Braintree validation error: [81503] Amount is an invalid format.; [81715] Credit card number is invalid.",
		},
		{
			name:        "validation without issues",
			outcome:     Validation(nil),
			wantErr:     ErrValidation,
			wantNotice:  genericFailureNotice,
			wantLogLine: "Braintree validation error: " + genericFailureNotice,
		},
		{
			name:        "processor declined",
			outcome:     Declined("Do Not Honor"),
			wantErr:     ErrProcessorDeclined,
			wantNotice:  "Do Not Honor",
			wantLogLine: "Braintree processor declined: Do Not Honor",
		},
		{
			name:        "gateway rejected",
			outcome:     Rejected("cvv"),
			wantErr:     ErrGatewayRejected,
			wantNotice:  "cvv",
			wantLogLine: "Braintree gateway rejected: cvv",
		},
		{
			name:        "declined without reason",
			outcome:     Declined(""),
			wantErr:     ErrProcessorDeclined,
			wantNotice:  genericFailureNotice,
			wantLogLine: "Braintree processor declined: ",
		},
		{
			name:        "failed",
			outcome:     Failed("settlement declined"),
			wantErr:     ErrPaymentFailed,
			wantNotice:  genericFailureNotice,
			wantLogLine: "Braintree error: settlement declined",
		},
		{
			name:        "nil outcome",
			outcome:     nil,
			wantErr:     ErrTransport,
			wantNotice:  genericFailureNotice,
			wantLogLine: "Braintree error: no result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Succeeded(); got != (tt.wantErr == nil) {
				t.Errorf("Succeeded() = %v", got)
			}
			if err := tt.outcome.Err(); !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Err() = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				return
			}
			if got := tt.outcome.Notice(); got != tt.wantNotice {
				t.Errorf("Notice() = %q, want %q", got, tt.wantNotice)
			}
			if got := tt.outcome.LogLine(); got != tt.wantLogLine {
				t.Errorf("LogLine() = %q, want %q", got, tt.wantLogLine)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrGatewayNotConfigured, "GATEWAY_NOT_CONFIGURED"},
		{ErrProcessorDeclined, "PROCESSOR_DECLINED"},
		{NewServiceError(ErrState, "missing plan", "MISSING_PLAN"), "MISSING_PLAN"},
		{NewServiceError(ErrNotFound, "gone", ""), "NOT_FOUND"},
		{errors.New("boom"), "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message(NewServiceError(ErrState, "Unable to proceed.", "X")); got != "Unable to proceed." {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(ErrNotFound); got != "not found" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q", got)
	}
}

func TestWebhookLatestTransaction(t *testing.T) {
	e := &WebhookEvent{}
	if _, ok := e.LatestTransaction(); ok {
		t.Error("no transaction expected")
	}
	e.Transactions = []WebhookTransaction{{ID: "new"}, {ID: "old"}}
	if tx, ok := e.LatestTransaction(); !ok || tx.ID != "new" {
		t.Errorf("LatestTransaction() = %+v, %v", tx, ok)
	}
}
