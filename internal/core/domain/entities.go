// Package domain contains the core business entities for the donation gateway.
// This is the innermost layer - no infrastructure dependencies.
package domain

import (
	"strconv"
	"time"
)

// Environment selects the Braintree environment a request runs against.
type Environment string

const (
	EnvironmentTest Environment = "test"
	EnvironmentLive Environment = "live"
)

// EnvironmentFor maps the host's test mode flag to an Environment.
func EnvironmentFor(testMode bool) Environment {
	if testMode {
		return EnvironmentTest
	}
	return EnvironmentLive
}

// IsTest reports whether the environment is the sandbox.
func (e Environment) IsTest() bool {
	return e == EnvironmentTest
}

// DonationStatus is the lifecycle state of a donation record.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

// SubscriptionStatus is the lifecycle state of a recurring donation.
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due" // last renewal payment failed
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Allocation is the share of a donation given to one campaign.
type Allocation struct {
	CampaignID   int64   `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	Amount       float64 `json:"amount"` // major units, e.g. 25.00
}

// Donation is a single gift recorded by the host.
type Donation struct {
	ID                   int64          `json:"id"`
	DonorID              int64          `json:"donor_id"`
	Total                float64        `json:"total"`
	Currency             string         `json:"currency"`
	Allocations          []Allocation   `json:"allocations"`
	Status               DonationStatus `json:"status"`
	Environment          Environment    `json:"environment"`
	GatewayTransactionID string         `json:"gateway_transaction_id,omitempty"`
	SubscriptionID       int64          `json:"subscription_id,omitempty"` // set on renewals
	CreatedAt            time.Time      `json:"created_at"`
}

// CampaignNames joins the allocation campaign names the way they are shown
// on receipts and statement descriptors.
func (d *Donation) CampaignNames() []string {
	names := make([]string, 0, len(d.Allocations))
	for _, a := range d.Allocations {
		names = append(names, a.CampaignName)
	}
	return names
}

// Donor holds the payer's contact details.
type Donor struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"` // ISO 3166-1 alpha-2

	// Processor customer ids, scoped per environment.
	TestCustomerID string `json:"test_customer_id,omitempty"`
	LiveCustomerID string `json:"live_customer_id,omitempty"`
}

// CustomerID returns the stored processor customer id for env.
func (d *Donor) CustomerID(env Environment) string {
	if env.IsTest() {
		return d.TestCustomerID
	}
	return d.LiveCustomerID
}

// Name returns the donor's display name.
func (d *Donor) Name() string {
	switch {
	case d.FirstName == "":
		return d.LastName
	case d.LastName == "":
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName
}

// HasAddress reports whether any billing address field is set.
func (d *Donor) HasAddress() bool {
	return d.Address != "" || d.Address2 != "" || d.City != "" ||
		d.State != "" || d.Postcode != "" || d.Country != ""
}

// Subscription is a recurring donation created by the host when the donor
// picks a billing period.
type Subscription struct {
	ID                    int64              `json:"id"`
	DonorID               int64              `json:"donor_id"`
	InitialDonationID     int64              `json:"initial_donation_id"`
	Period                Period             `json:"period"`
	PlanID                string             `json:"plan_id,omitempty"`
	Status                SubscriptionStatus `json:"status"`
	Environment           Environment        `json:"environment"`
	GatewaySubscriptionID string             `json:"gateway_subscription_id,omitempty"`
	BillingCycles         int                `json:"billing_cycles"` // 0 = unbounded
	FailedTransactionID   string             `json:"failed_transaction_id,omitempty"`
}

// Period is a billing period key.
type Period string

const (
	PeriodMonth      Period = "month"
	PeriodQuarter    Period = "quarter"
	PeriodSemiannual Period = "semiannual"
	PeriodYear       Period = "year"
)

// Periods lists the supported billing periods in display order.
var Periods = []Period{PeriodMonth, PeriodQuarter, PeriodSemiannual, PeriodYear}

// BillingFrequency returns the plan billing frequency in months, or 0 for
// an unknown period.
func (p Period) BillingFrequency() int {
	switch p {
	case PeriodMonth:
		return 1
	case PeriodQuarter:
		return 3
	case PeriodSemiannual:
		return 6
	case PeriodYear:
		return 12
	}
	return 0
}

// PlanMapping maps billing periods to processor plan ids for one campaign
// (or the global default) in one environment.
type PlanMapping map[Period]string

// Credentials are the Braintree API keys for one environment.
type Credentials struct {
	MerchantID        string `json:"merchant_id"`
	PublicKey         string `json:"public_key"`
	PrivateKey        string `json:"private_key"`
	MerchantAccountID string `json:"merchant_account_id,omitempty"`
}

// Complete reports whether the keys needed to build a client are present.
func (c Credentials) Complete() bool {
	return c.MerchantID != "" && c.PublicKey != "" && c.PrivateKey != ""
}

// PaymentData is what the capture widget attached to the donation form.
type PaymentData struct {
	Nonce              string `json:"nonce"`
	PaymentMethodToken string `json:"payment_method_token,omitempty"`
	DeviceData         string `json:"device_data,omitempty"`
	ThreeDSecureStatus string `json:"three_d_secure_status,omitempty"`
	RequireThreeDS     bool   `json:"require_three_d_secure,omitempty"`
}

// Vaulted reports whether the payment references a stored payment method
// instead of a one-time nonce.
func (p PaymentData) Vaulted() bool {
	return p.PaymentMethodToken != ""
}

// SiteInfo describes the site the donations are made on.
type SiteInfo struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

// Plan is a recurring billing plan defined in the processor.
type Plan struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	BillingFrequency int    `json:"billing_frequency"`
	Price            string `json:"price"`
	Currency         string `json:"currency"`
}

// MerchantAccount is a processor merchant account.
type MerchantAccount struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Currency string `json:"currency"`
	Default  bool   `json:"default"`
}

// ProcessorCustomer is a customer vaulted in the processor.
type ProcessorCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// FormatID renders a record id the way the processor expects references.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
