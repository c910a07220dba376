package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

type donationFixture struct {
	store     *memStore
	settings  *memSettings
	processor *mockProcessor
	service   *DonationService
}

func newDonationFixture() *donationFixture {
	store := newMemStore()
	settings := testSettings()
	processor := &mockProcessor{}
	resolver, _ := newTestResolver(settings, processor)
	log := zap.NewNop()

	newTestDonor(store)
	store.donations[42] = &domain.Donation{
		ID:          42,
		DonorID:     7,
		Total:       25.00,
		Currency:    "USD",
		Status:      domain.DonationPending,
		Environment: domain.EnvironmentTest,
		Allocations: []domain.Allocation{{CampaignID: 42, CampaignName: "Clean Water", Amount: 25.00}},
	}

	svc := NewDonationService(
		resolver,
		NewProvisioner(store, nil, log),
		NewPlanResolver(store, settings),
		settings,
		store,
		store,
		store,
		domain.SiteInfo{Name: "GiveStack", Host: "givestack.org"},
		log,
	)
	return &donationFixture{store: store, settings: settings, processor: processor, service: svc}
}

func (f *donationFixture) process(t *testing.T, req ProcessRequest) *ProcessResult {
	t.Helper()
	result, err := f.service.ProcessDonation(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessDonation: %v", err)
	}
	return result
}

func TestProcessDonationOneTimeSuccess(t *testing.T) {
	f := newDonationFixture()

	result := f.process(t, ProcessRequest{DonationID: 42, Payment: domain.PaymentData{Nonce: "fake-valid-nonce"}})

	if !result.Success || result.TransactionID != "txn_1" {
		t.Fatalf("result = %+v", result)
	}
	if len(f.processor.sales) != 1 {
		t.Fatalf("got %d sales, want 1", len(f.processor.sales))
	}
	sale := f.processor.sales[0]
	if sale.Amount != 2500 || sale.CustomerID != "cust_new" || sale.MerchantAccountID != "donations_usd" {
		t.Errorf("sale = %+v", sale)
	}

	donation := f.store.donations[42]
	if donation.Status != domain.DonationCompleted || donation.GatewayTransactionID != "txn_1" {
		t.Errorf("donation = %+v", donation)
	}
	wantLog := "Braintree transaction: https://sandbox.braintreegateway.com/merchants/merchant123/transactions/txn_1"
	if logs := f.store.donationLogs[42]; len(logs) != 1 || logs[0] != wantLog {
		t.Errorf("donation logs = %v", logs)
	}
	if f.store.donors[7].TestCustomerID != "cust_new" {
		t.Error("new customer id should be stored on the donor")
	}
}

func TestProcessDonationOneTimeFailures(t *testing.T) {
	tests := []struct {
		name       string
		sale       func(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error)
		wantNotice string
		wantCode   string
		wantLog    string
	}{
		{
			name: "processor declined",
			sale: func(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error) {
				return domain.Declined("Insufficient Funds"), nil
			},
			wantNotice: "Insufficient Funds",
			wantCode:   "PROCESSOR_DECLINED",
			wantLog:    "Braintree processor declined: Insufficient Funds",
		},
		{
			name: "gateway rejected",
			sale: func(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error) {
				return domain.Rejected("fraud"), nil
			},
			wantNotice: "fraud",
			wantCode:   "GATEWAY_REJECTED",
			wantLog:    "Braintree gateway rejected: fraud",
		},
		{
			name: "validation errors",
			sale: func(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error) {
				return domain.Validation([]domain.ValidationIssue{
					{Attribute: "amount", Code: "81503", Message: "Amount is an invalid format."},
				}), nil
			},
			wantNotice: "[81503] Amount is an invalid format.",
			wantCode:   "VALIDATION_ERROR",
			wantLog:    "Braintree validation error: [81503] Amount is an invalid format.",
		},
		{
			name: "generic failure",
			sale: func(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error) {
				return domain.Failed(""), nil
			},
			wantNotice: noticeTransactionFailed,
			wantCode:   "PAYMENT_FAILED",
			wantLog:    "Braintree error: ",
		},
		{
			name: "transport error",
			sale: func(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error) {
				return nil, domain.ErrTransport
			},
			wantNotice: noticeTransactionFailed,
			wantCode:   "TRANSPORT_ERROR",
			wantLog:    "Braintree error: processor transport error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDonationFixture()
			f.processor.SaleFunc = tt.sale

			result := f.process(t, ProcessRequest{DonationID: 42, Payment: domain.PaymentData{Nonce: "n"}})

			if result.Success {
				t.Fatal("expected failure")
			}
			if len(result.Notices) != 1 || result.Notices[0] != tt.wantNotice {
				t.Errorf("notices = %q, want %q", result.Notices, tt.wantNotice)
			}
			if result.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", result.ErrorCode, tt.wantCode)
			}
			if got := f.store.donations[42].Status; got != domain.DonationPending {
				t.Errorf("status = %q, donation should stay pending", got)
			}
			if logs := f.store.donationLogs[42]; len(logs) != 1 || logs[0] != tt.wantLog {
				t.Errorf("donation logs = %q, want %q", logs, tt.wantLog)
			}
		})
	}
}

func TestProcessDonationNotConfigured(t *testing.T) {
	f := newDonationFixture()
	delete(f.settings.values, "gateways_braintree.test_private_key")

	result := f.process(t, ProcessRequest{DonationID: 42, Payment: domain.PaymentData{Nonce: "n"}})

	if result.Success || result.ErrorCode != "GATEWAY_NOT_CONFIGURED" {
		t.Fatalf("result = %+v", result)
	}
	if result.Notices[0] != noticeNotConfigured {
		t.Errorf("notice = %q", result.Notices[0])
	}
	if len(f.processor.sales) != 0 || f.processor.customers != 0 {
		t.Error("no processor call may be made without credentials")
	}
}

func TestProcessDonationVerificationFailed(t *testing.T) {
	f := newDonationFixture()

	result := f.process(t, ProcessRequest{DonationID: 42, Payment: domain.PaymentData{Nonce: "n", ThreeDSecureStatus: "authenticate_failed"}})

	if result.Success || result.ErrorCode != "VERIFICATION_FAILED" {
		t.Fatalf("result = %+v", result)
	}
	if len(f.processor.sales) != 0 {
		t.Error("no sale may be attempted after a failed verification")
	}
}

func TestProcessDonationLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     ProcessRequest
		setup   func(f *donationFixture)
		wantErr error
	}{
		{
			name:    "unknown donation",
			req:     ProcessRequest{DonationID: 999},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "already completed",
			req:  ProcessRequest{DonationID: 42},
			setup: func(f *donationFixture) {
				f.store.donations[42].Status = domain.DonationCompleted
			},
			wantErr: domain.ErrState,
		},
		{
			name:    "unknown subscription",
			req:     ProcessRequest{DonationID: 42, SubscriptionID: 5},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDonationFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.service.ProcessDonation(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// recurringFixture adds a monthly subscription for donation 42 with two
// allocations.
func newRecurringFixture() *donationFixture {
	f := newDonationFixture()
	f.store.donations[42].Total = 35
	f.store.donations[42].Allocations = []domain.Allocation{
		{CampaignID: 1, CampaignName: "Wells", Amount: 20},
		{CampaignID: 2, CampaignName: "Pumps", Amount: 15},
	}
	f.store.subscriptions[5] = &domain.Subscription{
		ID:                5,
		DonorID:           7,
		InitialDonationID: 42,
		Period:            domain.PeriodMonth,
		Status:            domain.SubscriptionPending,
		Environment:       domain.EnvironmentTest,
	}
	return f
}

func TestProcessDonationRecurringSamePlan(t *testing.T) {
	f := newRecurringFixture()
	f.settings.values["gateways_braintree.default_test_plans.month"] = "monthly"

	result := f.process(t, ProcessRequest{DonationID: 42, SubscriptionID: 5, Payment: domain.PaymentData{Nonce: "n"}})

	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if len(f.processor.subscriptions) != 1 {
		t.Fatalf("got %d subscriptions, want 1", len(f.processor.subscriptions))
	}
	req := f.processor.subscriptions[0]
	if req.PlanID != "monthly" || req.Price != 3500 || req.PaymentMethodToken != "pm_token" || req.MerchantAccountID != "donations_usd" {
		t.Errorf("subscription request = %+v", req)
	}

	sub := f.store.subscriptions[5]
	if sub.GatewaySubscriptionID != "sub_monthly" || sub.PlanID != "monthly" || sub.Status != domain.SubscriptionActive {
		t.Errorf("subscription = %+v", sub)
	}
	donation := f.store.donations[42]
	if donation.Status != domain.DonationCompleted || donation.GatewayTransactionID != "txn_monthly" {
		t.Errorf("donation = %+v", donation)
	}
	wantLog := "Braintree subscription: https://sandbox.braintreegateway.com/merchants/merchant123/subscriptions/sub_monthly"
	if logs := f.store.subscriptionLogs[5]; len(logs) != 1 || logs[0] != wantLog {
		t.Errorf("subscription logs = %v", logs)
	}
}

func TestProcessDonationRecurringSeveralPlans(t *testing.T) {
	f := newRecurringFixture()
	f.store.plans[1] = domain.PlanMapping{domain.PeriodMonth: "wells-monthly"}
	f.store.plans[2] = domain.PlanMapping{domain.PeriodMonth: "pumps-monthly"}

	result := f.process(t, ProcessRequest{DonationID: 42, SubscriptionID: 5, Payment: domain.PaymentData{Nonce: "n"}})

	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if got := strings.Join(result.SubscriptionIDs, ","); got != "sub_wells-monthly,sub_pumps-monthly" {
		t.Errorf("SubscriptionIDs = %s", got)
	}
	if len(f.store.subscriptions) != 2 {
		t.Fatalf("got %d local subscriptions, want 2", len(f.store.subscriptions))
	}

	sibling, err := f.store.FindByGatewayID(context.Background(), "sub_pumps-monthly")
	if err != nil {
		t.Fatalf("sibling subscription not recorded: %v", err)
	}
	if sibling.ID == 5 || sibling.InitialDonationID != 42 || sibling.Status != domain.SubscriptionActive {
		t.Errorf("sibling = %+v", sibling)
	}
	if f.store.subscriptions[5].GatewaySubscriptionID != "sub_wells-monthly" {
		t.Error("first processor subscription should be bound to the host record")
	}
	if f.store.donations[42].GatewayTransactionID != "txn_wells-monthly" {
		t.Errorf("transaction id = %q", f.store.donations[42].GatewayTransactionID)
	}
	if result.TransactionID != "txn_wells-monthly" {
		t.Errorf("TransactionID = %q, want the first plan's charge", result.TransactionID)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want one per plan", len(result.Outcomes))
	}
	if result.Outcomes[0].SubscriptionID != "sub_wells-monthly" || result.Outcomes[1].SubscriptionID != "sub_pumps-monthly" {
		t.Errorf("outcomes = %+v, %+v", result.Outcomes[0], result.Outcomes[1])
	}
	if result.Outcome != result.Outcomes[1] {
		t.Error("Outcome should be the last plan's result")
	}
}

func TestProcessDonationRecurringMissingPlan(t *testing.T) {
	f := newRecurringFixture()
	f.store.plans[1] = domain.PlanMapping{domain.PeriodMonth: "wells-monthly"}

	result := f.process(t, ProcessRequest{DonationID: 42, SubscriptionID: 5, Payment: domain.PaymentData{Nonce: "n"}})

	if result.Success || result.ErrorCode != "MISSING_PLAN" {
		t.Fatalf("result = %+v", result)
	}
	if result.Notices[0] != "ERROR: Unable to create recurring donation without default plan." {
		t.Errorf("notice = %q", result.Notices[0])
	}
	if len(f.processor.subscriptions) != 0 || f.processor.customers != 0 {
		t.Error("nothing may be created upstream when a plan is missing")
	}
}

func TestProcessDonationRecurringPendingActivation(t *testing.T) {
	f := newRecurringFixture()
	f.settings.values["gateways_braintree.default_test_plans.month"] = "monthly"
	f.processor.CreateSubscriptionFunc = func(ctx context.Context, req *domain.SubscriptionRequest) (*domain.Outcome, error) {
		return &domain.Outcome{Kind: domain.OutcomeSuccess, SubscriptionID: "sub_1", SubscriptionStatus: "Pending"}, nil
	}

	result := f.process(t, ProcessRequest{DonationID: 42, SubscriptionID: 5, Payment: domain.PaymentData{Nonce: "n"}})

	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if f.store.donations[42].Status != domain.DonationPending {
		t.Error("donation should wait for the charge webhook")
	}
	if sub := f.store.subscriptions[5]; sub.Status != domain.SubscriptionPending || sub.GatewaySubscriptionID != "sub_1" {
		t.Errorf("subscription = %+v", sub)
	}
}

func TestProcessDonationRecurringDeclined(t *testing.T) {
	f := newRecurringFixture()
	f.settings.values["gateways_braintree.default_test_plans.month"] = "monthly"
	f.processor.CreateSubscriptionFunc = func(ctx context.Context, req *domain.SubscriptionRequest) (*domain.Outcome, error) {
		return domain.Failed("unknown"), nil
	}

	result := f.process(t, ProcessRequest{DonationID: 42, SubscriptionID: 5, Payment: domain.PaymentData{Nonce: "n"}})

	if result.Success || result.Notices[0] != noticeSubscriptionFailed {
		t.Fatalf("result = %+v", result)
	}
	if f.store.subscriptions[5].GatewaySubscriptionID != "" {
		t.Error("failed subscription must not be recorded")
	}
}

func TestProcessDonationRecurringVerificationFailed(t *testing.T) {
	f := newRecurringFixture()
	f.settings.values["gateways_braintree.default_test_plans.month"] = "monthly"
	f.processor.CreatePaymentMethodFunc = func(ctx context.Context, req domain.PaymentMethodRequest) (*domain.PaymentMethodResult, error) {
		return &domain.PaymentMethodResult{Token: "pm", VerificationStatus: "authenticate_rejected"}, nil
	}

	result := f.process(t, ProcessRequest{DonationID: 42, SubscriptionID: 5, Payment: domain.PaymentData{Nonce: "n"}})

	if result.Success || result.ErrorCode != "VERIFICATION_FAILED" {
		t.Fatalf("result = %+v", result)
	}
	if len(f.processor.subscriptions) != 0 {
		t.Error("no subscription may be created after a failed verification")
	}
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		env  domain.Environment
		want string
	}{
		{domain.EnvironmentTest, "https://sandbox.braintreegateway.com/merchants/m1/transactions/t1"},
		{domain.EnvironmentLive, "https://braintreegateway.com/merchants/m1/transactions/t1"},
	}
	for _, tt := range tests {
		if got := DashboardURL(tt.env, "m1", "transactions", "t1"); got != tt.want {
			t.Errorf("DashboardURL(%s) = %q, want %q", tt.env, got, tt.want)
		}
	}
}
