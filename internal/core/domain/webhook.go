package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WebhookKind is the processor's webhook notification kind.
type WebhookKind string

const (
	WebhookSubscriptionCanceled            WebhookKind = "subscription_canceled"
	WebhookSubscriptionChargedSuccessfully WebhookKind = "subscription_charged_successfully"
	WebhookSubscriptionWentActive          WebhookKind = "subscription_went_active"
	WebhookSubscriptionWentPastDue         WebhookKind = "subscription_went_past_due"
	WebhookSubscriptionExpired             WebhookKind = "subscription_expired"
	WebhookCheck                           WebhookKind = "check"
)

// WebhookTransaction is a transaction embedded in a subscription snapshot.
type WebhookTransaction struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// WebhookEvent is a verified, parsed webhook notification.
type WebhookEvent struct {
	Kind               WebhookKind `json:"kind"`
	Timestamp          time.Time   `json:"timestamp"`
	SubscriptionID     string      `json:"subscription_id,omitempty"`
	SubscriptionStatus string      `json:"subscription_status,omitempty"`
	// Transactions are ordered most recent first.
	Transactions []WebhookTransaction `json:"transactions,omitempty"`
}

// LatestTransaction returns the most recent transaction, if any.
func (e *WebhookEvent) LatestTransaction() (WebhookTransaction, bool) {
	if len(e.Transactions) == 0 {
		return WebhookTransaction{}, false
	}
	return e.Transactions[0], true
}

// WebhookResult is what a dispatched handler reports back to the HTTP layer.
type WebhookResult struct {
	Kind      WebhookKind `json:"kind"`
	Message   string      `json:"message"`
	Duplicate bool        `json:"duplicate,omitempty"`
}
