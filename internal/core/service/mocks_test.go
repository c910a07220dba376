package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// mockProcessor is a function-field Processor. Unset functions return zero
// values and record nothing.
type mockProcessor struct {
	FindCustomerFunc        func(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error)
	CreateCustomerFunc      func(ctx context.Context, req domain.CustomerRequest) (string, error)
	CreateAddressFunc       func(ctx context.Context, customerID string, req domain.AddressRequest) (string, error)
	CreatePaymentMethodFunc func(ctx context.Context, req domain.PaymentMethodRequest) (*domain.PaymentMethodResult, error)
	SaleFunc                func(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error)
	RefundFunc              func(ctx context.Context, transactionID string) (*domain.Outcome, error)
	CreateSubscriptionFunc  func(ctx context.Context, req *domain.SubscriptionRequest) (*domain.Outcome, error)
	CancelSubscriptionFunc  func(ctx context.Context, subscriptionID string) error
	ListPlansFunc           func(ctx context.Context) ([]domain.Plan, error)
	FindMerchantAccountFunc func(ctx context.Context, merchantAccountID string) (*domain.MerchantAccount, error)
	GenerateClientTokenFunc func(ctx context.Context) (string, error)
	ParseWebhookFunc        func(signature, payload string) (*domain.WebhookEvent, error)

	sales         []*domain.TransactionRequest
	subscriptions []*domain.SubscriptionRequest
	customers     int
}

func (m *mockProcessor) FindCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error) {
	if m.FindCustomerFunc != nil {
		return m.FindCustomerFunc(ctx, customerID)
	}
	return &domain.ProcessorCustomer{ID: customerID}, nil
}

func (m *mockProcessor) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (string, error) {
	m.customers++
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, req)
	}
	return "cust_new", nil
}

func (m *mockProcessor) CreateAddress(ctx context.Context, customerID string, req domain.AddressRequest) (string, error) {
	if m.CreateAddressFunc != nil {
		return m.CreateAddressFunc(ctx, customerID, req)
	}
	return "addr_1", nil
}

func (m *mockProcessor) CreatePaymentMethod(ctx context.Context, req domain.PaymentMethodRequest) (*domain.PaymentMethodResult, error) {
	if m.CreatePaymentMethodFunc != nil {
		return m.CreatePaymentMethodFunc(ctx, req)
	}
	return &domain.PaymentMethodResult{Token: "pm_token"}, nil
}

func (m *mockProcessor) Sale(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error) {
	m.sales = append(m.sales, req)
	if m.SaleFunc != nil {
		return m.SaleFunc(ctx, req)
	}
	return domain.Success("txn_1"), nil
}

func (m *mockProcessor) Refund(ctx context.Context, transactionID string) (*domain.Outcome, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, transactionID)
	}
	return domain.Success("refund_1"), nil
}

func (m *mockProcessor) CreateSubscription(ctx context.Context, req *domain.SubscriptionRequest) (*domain.Outcome, error) {
	m.subscriptions = append(m.subscriptions, req)
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, req)
	}
	return &domain.Outcome{
		Kind:               domain.OutcomeSuccess,
		SubscriptionID:     "sub_" + req.PlanID,
		SubscriptionStatus: subscriptionStatusActive,
		TransactionID:      "txn_" + req.PlanID,
	}, nil
}

func (m *mockProcessor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, subscriptionID)
	}
	return nil
}

func (m *mockProcessor) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	if m.ListPlansFunc != nil {
		return m.ListPlansFunc(ctx)
	}
	return nil, nil
}

func (m *mockProcessor) FindMerchantAccount(ctx context.Context, merchantAccountID string) (*domain.MerchantAccount, error) {
	if m.FindMerchantAccountFunc != nil {
		return m.FindMerchantAccountFunc(ctx, merchantAccountID)
	}
	return &domain.MerchantAccount{ID: merchantAccountID, Status: "active"}, nil
}

func (m *mockProcessor) GenerateClientToken(ctx context.Context) (string, error) {
	if m.GenerateClientTokenFunc != nil {
		return m.GenerateClientTokenFunc(ctx)
	}
	return "client_token", nil
}

func (m *mockProcessor) ParseWebhook(signature, payload string) (*domain.WebhookEvent, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(signature, payload)
	}
	return &domain.WebhookEvent{Kind: domain.WebhookCheck}, nil
}

// mockFactory hands out the same processor and counts constructions.
type mockFactory struct {
	processor ports.Processor
	calls     int
	lastCreds domain.Credentials
}

func (f *mockFactory) NewProcessor(env domain.Environment, creds domain.Credentials) (ports.Processor, error) {
	f.calls++
	f.lastCreds = creds
	return f.processor, nil
}

// memSettings is an in-memory SettingsStore.
type memSettings struct {
	mu     sync.Mutex
	values map[string]string
	sets   int
}

func newMemSettings(values map[string]string) *memSettings {
	if values == nil {
		values = make(map[string]string)
	}
	return &memSettings{values: values}
}

func (s *memSettings) Get(_ context.Context, path string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[path]
	return v, ok, nil
}

func (s *memSettings) Set(_ context.Context, path, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[path] = value
	s.sets++
	return nil
}

// testSettings returns settings with complete sandbox keys and test mode on.
func testSettings() *memSettings {
	return newMemSettings(map[string]string{
		"test_mode":                                   "1",
		"gateways_braintree.test_merchant_id":         "merchant123",
		"gateways_braintree.test_public_key":          "pub",
		"gateways_braintree.test_private_key":         "priv",
		"gateways_braintree.test_merchant_account_id": "donations_usd",
	})
}

// memStore implements the donation, donor, subscription and campaign stores.
type memStore struct {
	donations     map[int64]*domain.Donation
	donors        map[int64]*domain.Donor
	subscriptions map[int64]*domain.Subscription
	plans         map[int64]domain.PlanMapping

	donationLogs     map[int64][]string
	subscriptionLogs map[int64][]string
	nextID           int64
}

func newMemStore() *memStore {
	return &memStore{
		donations:        make(map[int64]*domain.Donation),
		donors:           make(map[int64]*domain.Donor),
		subscriptions:    make(map[int64]*domain.Subscription),
		plans:            make(map[int64]domain.PlanMapping),
		donationLogs:     make(map[int64][]string),
		subscriptionLogs: make(map[int64][]string),
		nextID:           1000,
	}
}

func (m *memStore) GetDonation(_ context.Context, id int64) (*domain.Donation, error) {
	d, ok := m.donations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) FindByTransactionID(_ context.Context, transactionID string) (*domain.Donation, error) {
	for _, d := range m.donations {
		if transactionID != "" && d.GatewayTransactionID == transactionID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) CreateDonation(_ context.Context, donation *domain.Donation) error {
	m.nextID++
	donation.ID = m.nextID
	cp := *donation
	m.donations[donation.ID] = &cp
	return nil
}

func (m *memStore) UpdateDonationStatus(_ context.Context, id int64, status domain.DonationStatus) error {
	d, ok := m.donations[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *memStore) SetDonationTransactionID(_ context.Context, id int64, transactionID string) error {
	d, ok := m.donations[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.GatewayTransactionID = transactionID
	return nil
}

func (m *memStore) AppendDonationLog(_ context.Context, id int64, message string) error {
	m.donationLogs[id] = append(m.donationLogs[id], message)
	return nil
}

func (m *memStore) GetDonor(_ context.Context, id int64) (*domain.Donor, error) {
	d, ok := m.donors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) SetCustomerID(_ context.Context, donorID int64, env domain.Environment, customerID string) error {
	d, ok := m.donors[donorID]
	if !ok {
		return domain.ErrNotFound
	}
	if env.IsTest() {
		d.TestCustomerID = customerID
	} else {
		d.LiveCustomerID = customerID
	}
	return nil
}

func (m *memStore) GetSubscription(_ context.Context, id int64) (*domain.Subscription, error) {
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) FindByGatewayID(_ context.Context, gatewayID string) (*domain.Subscription, error) {
	for _, s := range m.subscriptions {
		if s.GatewaySubscriptionID == gatewayID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) CreateSubscription(_ context.Context, sub *domain.Subscription) error {
	m.nextID++
	sub.ID = m.nextID
	cp := *sub
	m.subscriptions[sub.ID] = &cp
	return nil
}

func (m *memStore) UpdateSubscriptionStatus(_ context.Context, id int64, status domain.SubscriptionStatus) error {
	s, ok := m.subscriptions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	return nil
}

func (m *memStore) SetGatewaySubscriptionID(_ context.Context, id int64, gatewayID, planID string) error {
	s, ok := m.subscriptions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.GatewaySubscriptionID = gatewayID
	s.PlanID = planID
	return nil
}

func (m *memStore) SetFailedTransaction(_ context.Context, id int64, transactionID string) error {
	s, ok := m.subscriptions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.FailedTransactionID = transactionID
	return nil
}

func (m *memStore) AppendSubscriptionLog(_ context.Context, id int64, message string) error {
	m.subscriptionLogs[id] = append(m.subscriptionLogs[id], message)
	return nil
}

func (m *memStore) GetPlanMapping(_ context.Context, campaignID int64, _ domain.Environment) (domain.PlanMapping, error) {
	if mapping, ok := m.plans[campaignID]; ok {
		return mapping, nil
	}
	return domain.PlanMapping{}, nil
}

// memCache is an in-memory CustomerCache.
type memCache struct {
	known map[string]bool
}

func newMemCache() *memCache {
	return &memCache{known: make(map[string]bool)}
}

func (c *memCache) Exists(_ context.Context, env domain.Environment, customerID string) (bool, error) {
	return c.known[string(env)+":"+customerID], nil
}

func (c *memCache) Remember(_ context.Context, env domain.Environment, customerID string) error {
	c.known[string(env)+":"+customerID] = true
	return nil
}

func (c *memCache) Forget(_ context.Context, env domain.Environment, customerID string) error {
	delete(c.known, string(env)+":"+customerID)
	return nil
}

// memLedger is an in-memory EventLedger.
type memLedger struct {
	claimed  map[string]bool
	released []string
	err      error
}

func newMemLedger() *memLedger {
	return &memLedger{claimed: make(map[string]bool)}
}

func (l *memLedger) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.claimed[key] {
		return false, nil
	}
	l.claimed[key] = true
	return true, nil
}

func (l *memLedger) Release(_ context.Context, key string) error {
	delete(l.claimed, key)
	l.released = append(l.released, key)
	return nil
}

// recordingListener captures forwarded webhook events and fails with err
// when set.
type recordingListener struct {
	events []*domain.WebhookEvent
	err    error
}

func (r *recordingListener) OnWebhookEvent(_ context.Context, event *domain.WebhookEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func newTestResolver(settings ports.SettingsStore, processor ports.Processor) (*CredentialResolver, *mockFactory) {
	factory := &mockFactory{processor: processor}
	return NewCredentialResolver(settings, factory, zap.NewNop()), factory
}
