// Package ports defines the interfaces (ports) for the donation gateway.
// These are contracts that adapters must implement.
package ports

import (
	"context"
	"time"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// Processor is a configured Braintree client for one environment.
//
// Business results (declines, validation errors) come back as
// *domain.Outcome. A non-nil error always means the call itself failed
// (network, SDK, unexpected response) and wraps domain.ErrTransport,
// except for lookups that return domain.ErrNotFound.
type Processor interface {
	// FindCustomer returns domain.ErrNotFound when the id no longer resolves.
	FindCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error)
	CreateCustomer(ctx context.Context, req domain.CustomerRequest) (string, error)
	CreateAddress(ctx context.Context, customerID string, req domain.AddressRequest) (string, error)
	CreatePaymentMethod(ctx context.Context, req domain.PaymentMethodRequest) (*domain.PaymentMethodResult, error)

	Sale(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error)
	Refund(ctx context.Context, transactionID string) (*domain.Outcome, error)

	CreateSubscription(ctx context.Context, req *domain.SubscriptionRequest) (*domain.Outcome, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error

	ListPlans(ctx context.Context) ([]domain.Plan, error)
	FindMerchantAccount(ctx context.Context, merchantAccountID string) (*domain.MerchantAccount, error)
	GenerateClientToken(ctx context.Context) (string, error)

	// ParseWebhook verifies the signature and decodes the payload.
	ParseWebhook(signature, payload string) (*domain.WebhookEvent, error)
}

// ProcessorFactory builds a Processor from credentials. It must not make
// network calls.
type ProcessorFactory interface {
	NewProcessor(env domain.Environment, creds domain.Credentials) (Processor, error)
}

// SettingsStore is the host's nested option store. Paths are dot separated,
// e.g. "gateways_braintree.test_merchant_id".
type SettingsStore interface {
	// Get returns "" with ok=false when the path is unset.
	Get(ctx context.Context, path string) (value string, ok bool, err error)
	Set(ctx context.Context, path, value string) error
}

// DonationStore reads and mutates donation records.
type DonationStore interface {
	GetDonation(ctx context.Context, id int64) (*domain.Donation, error)
	// FindByTransactionID returns domain.ErrNotFound when no donation
	// carries the processor transaction id.
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Donation, error)
	CreateDonation(ctx context.Context, donation *domain.Donation) error
	UpdateDonationStatus(ctx context.Context, id int64, status domain.DonationStatus) error
	SetDonationTransactionID(ctx context.Context, id int64, transactionID string) error
	AppendDonationLog(ctx context.Context, id int64, message string) error
}

// DonorStore reads donors and records their processor customer ids.
type DonorStore interface {
	GetDonor(ctx context.Context, id int64) (*domain.Donor, error)
	SetCustomerID(ctx context.Context, donorID int64, env domain.Environment, customerID string) error
}

// SubscriptionStore reads and mutates recurring donation records.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, id int64) (*domain.Subscription, error)
	// FindByGatewayID returns domain.ErrNotFound when no local record
	// carries the processor subscription id.
	FindByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, id int64, status domain.SubscriptionStatus) error
	SetGatewaySubscriptionID(ctx context.Context, id int64, gatewayID, planID string) error
	SetFailedTransaction(ctx context.Context, id int64, transactionID string) error
	AppendSubscriptionLog(ctx context.Context, id int64, message string) error
}

// CampaignStore reads per-campaign plan mappings.
type CampaignStore interface {
	// GetPlanMapping returns an empty mapping when the campaign has none.
	GetPlanMapping(ctx context.Context, campaignID int64, env domain.Environment) (domain.PlanMapping, error)
}

// CustomerCache remembers processor customer ids known to exist.
type CustomerCache interface {
	Exists(ctx context.Context, env domain.Environment, customerID string) (bool, error)
	Remember(ctx context.Context, env domain.Environment, customerID string) error
	Forget(ctx context.Context, env domain.Environment, customerID string) error
}

// EventLedger records processed webhook deliveries so redeliveries are
// not dispatched twice.
type EventLedger interface {
	// Claim returns false when the key was already claimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventListener receives webhook kinds without a built-in handler.
type EventListener interface {
	OnWebhookEvent(ctx context.Context, event *domain.WebhookEvent) error
}
