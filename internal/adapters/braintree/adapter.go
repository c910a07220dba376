package braintree

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	bt "github.com/braintree-go/braintree-go"
	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

const transactionTypeSale = "sale"

// Adapter implements ports.Processor for one environment.
type Adapter struct {
	gateway *bt.Braintree
	logger  *zap.Logger
}

// FindCustomer looks up a vaulted customer.
func (a *Adapter) FindCustomer(ctx context.Context, customerID string) (*domain.ProcessorCustomer, error) {
	customer, err := a.gateway.Customer().Find(ctx, customerID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, transportError("find customer", err)
	}
	return &domain.ProcessorCustomer{ID: customer.Id, Email: customer.Email}, nil
}

// CreateCustomer vaults a new customer and returns its id.
func (a *Adapter) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (string, error) {
	customer, err := a.gateway.Customer().Create(ctx, &bt.CustomerRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		return "", transportError("create customer", err)
	}
	return customer.Id, nil
}

// CreateAddress adds a billing address to a customer and returns its id.
func (a *Adapter) CreateAddress(ctx context.Context, customerID string, req domain.AddressRequest) (string, error) {
	address, err := a.gateway.Address().Create(ctx, customerID, &bt.AddressRequest{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		StreetAddress:     req.StreetAddress,
		ExtendedAddress:   req.ExtendedAddress,
		Locality:          req.Locality,
		Region:            req.Region,
		PostalCode:        req.PostalCode,
		CountryCodeAlpha2: req.CountryCodeAlpha2,
	})
	if err != nil {
		return "", transportError("create address", err)
	}
	return address.Id, nil
}

// CreatePaymentMethod vaults a nonce against a customer.
func (a *Adapter) CreatePaymentMethod(ctx context.Context, req domain.PaymentMethodRequest) (*domain.PaymentMethodResult, error) {
	sdkReq := &bt.PaymentMethodRequest{
		CustomerId:         req.CustomerID,
		PaymentMethodNonce: req.Nonce,
		BillingAddressId:   req.BillingAddressID,
		DeviceData:         req.DeviceData,
	}
	if req.VerifyCard {
		verify := true
		sdkReq.Options = &bt.PaymentMethodRequestOptions{
			VerifyCard:                    &verify,
			VerificationMerchantAccountId: req.VerificationMerchantAccountID,
		}
	}

	method, err := a.gateway.PaymentMethod().Create(ctx, sdkReq)
	if err != nil {
		var btErr *bt.BraintreeError
		if errors.As(err, &btErr) {
			return nil, domain.NewServiceError(domain.ErrValidation, btErr.ErrorMessage, "PAYMENT_METHOD_REJECTED")
		}
		return nil, transportError("create payment method", err)
	}

	// The SDK does not surface the 3-D Secure status of the vaulting
	// verification; callers fall back to the status reported by the widget.
	return &domain.PaymentMethodResult{Token: method.GetToken()}, nil
}

// Sale submits a one-time transaction for settlement.
func (a *Adapter) Sale(ctx context.Context, req *domain.TransactionRequest) (*domain.Outcome, error) {
	sdkReq := &bt.TransactionRequest{
		Type:               transactionTypeSale,
		Amount:             toDecimal(req.Amount, req.Currency),
		OrderId:            req.OrderID,
		CustomerID:         req.CustomerID,
		PaymentMethodToken: req.PaymentMethodToken,
		PaymentMethodNonce: req.PaymentMethodNonce,
		MerchantAccountId:  req.MerchantAccountID,
		DeviceData:         req.DeviceData,
		Options: &bt.TransactionOptions{
			SubmitForSettlement: req.SubmitForSettlement,
		},
		Descriptor: &bt.Descriptor{
			Name: req.Descriptor.Name,
			URL:  req.Descriptor.URL,
		},
		LineItems: toLineItems(req.LineItems, req.Currency),
	}
	if req.ThreeDSecureRequired {
		sdkReq.Options.ThreeDSecure = &bt.TransactionOptionsThreeDSecureRequest{Required: true}
	}

	tx, err := a.gateway.Transaction().Create(ctx, sdkReq)
	if err != nil {
		return a.classifyError("sale", err)
	}

	outcome := classifyTransaction(tx)
	a.logger.Debug("Braintree sale", zap.String("order_id", req.OrderID), zap.String("kind", string(outcome.Kind)))
	return outcome, nil
}

// Refund refunds a settled transaction in full.
func (a *Adapter) Refund(ctx context.Context, transactionID string) (*domain.Outcome, error) {
	tx, err := a.gateway.Transaction().Refund(ctx, transactionID)
	if err != nil {
		return a.classifyError("refund", err)
	}
	return classifyTransaction(tx), nil
}

// CreateSubscription creates a subscription on a vaulted payment method.
func (a *Adapter) CreateSubscription(ctx context.Context, req *domain.SubscriptionRequest) (*domain.Outcome, error) {
	sdkReq := &bt.SubscriptionRequest{
		PlanId:             req.PlanID,
		PaymentMethodToken: req.PaymentMethodToken,
		Price:              toDecimal(req.Price, req.Currency),
		MerchantAccountId:  req.MerchantAccountID,
		Descriptor: &bt.Descriptor{
			Name: req.Descriptor.Name,
			URL:  req.Descriptor.URL,
		},
	}
	if req.BillingCycles > 0 {
		cycles := req.BillingCycles
		sdkReq.NumberOfBillingCycles = &cycles
	} else {
		never := true
		sdkReq.NeverExpires = &never
	}

	sub, err := a.gateway.Subscription().Create(ctx, sdkReq)
	if err != nil {
		return a.classifyError("create subscription", err)
	}

	outcome := &domain.Outcome{
		Kind:               domain.OutcomeSuccess,
		SubscriptionID:     sub.Id,
		SubscriptionStatus: string(sub.Status),
	}
	if sub.Transactions != nil && len(sub.Transactions.Transaction) > 0 {
		outcome.TransactionID = sub.Transactions.Transaction[0].Id
	}
	return outcome, nil
}

// CancelSubscription cancels a subscription.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if _, err := a.gateway.Subscription().Cancel(ctx, subscriptionID); err != nil {
		if isNotFound(err) {
			return domain.ErrNotFound
		}
		var btErr *bt.BraintreeError
		if errors.As(err, &btErr) {
			return domain.NewServiceError(domain.ErrValidation, btErr.ErrorMessage, "CANCEL_REJECTED")
		}
		return transportError("cancel subscription", err)
	}
	return nil
}

// ListPlans returns every plan defined for the merchant.
func (a *Adapter) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	plans, err := a.gateway.Plan().All(ctx)
	if err != nil {
		return nil, transportError("list plans", err)
	}

	out := make([]domain.Plan, 0, len(plans))
	for _, p := range plans {
		plan := domain.Plan{
			ID:       p.Id,
			Name:     p.Name,
			Currency: p.CurrencyISOCode,
		}
		if p.BillingFrequency != nil {
			plan.BillingFrequency = *p.BillingFrequency
		}
		if p.Price != nil {
			plan.Price = fromDecimal(p.Price).String()
		}
		out = append(out, plan)
	}
	return out, nil
}

// FindMerchantAccount looks up a merchant account.
func (a *Adapter) FindMerchantAccount(ctx context.Context, merchantAccountID string) (*domain.MerchantAccount, error) {
	account, err := a.gateway.MerchantAccount().Find(ctx, merchantAccountID)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, transportError("find merchant account", err)
	}
	return &domain.MerchantAccount{ID: account.Id, Status: account.Status}, nil
}

// GenerateClientToken returns a token the payment widget authorizes with.
func (a *Adapter) GenerateClientToken(ctx context.Context) (string, error) {
	token, err := a.gateway.ClientToken().Generate(ctx)
	if err != nil {
		return "", transportError("generate client token", err)
	}
	return token, nil
}

// ParseWebhook verifies a webhook signature and decodes its payload.
func (a *Adapter) ParseWebhook(signature, payload string) (*domain.WebhookEvent, error) {
	notification, err := a.gateway.WebhookNotification().Parse(signature, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookValidationFailed, err)
	}

	event := &domain.WebhookEvent{
		Kind:      domain.WebhookKind(notification.Kind),
		Timestamp: notification.Timestamp,
	}
	if notification.Subject == nil || notification.Subject.Subscription == nil {
		return event, nil
	}

	sub := notification.Subject.Subscription
	event.SubscriptionID = sub.Id
	event.SubscriptionStatus = string(sub.Status)
	if sub.Transactions != nil {
		for _, tx := range sub.Transactions.Transaction {
			event.Transactions = append(event.Transactions, domain.WebhookTransaction{
				ID:       tx.Id,
				Status:   string(tx.Status),
				Amount:   fromDecimal(tx.Amount),
				Currency: tx.CurrencyISOCode,
			})
		}
	}
	return event, nil
}

// classifyError turns an SDK error into an outcome. Only errors that carry
// a processor response are outcomes; everything else is a transport error.
func (a *Adapter) classifyError(op string, err error) (*domain.Outcome, error) {
	var btErr *bt.BraintreeError
	if !errors.As(err, &btErr) {
		a.logger.Warn("Braintree request failed", zap.String("op", op), zap.Error(err))
		return nil, transportError(op, err)
	}

	if btErr.Transaction != nil {
		return classifyTransaction(btErr.Transaction), nil
	}

	fieldErrors := btErr.All()
	if len(fieldErrors) == 0 {
		return domain.Failed(btErr.ErrorMessage), nil
	}
	issues := make([]domain.ValidationIssue, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		issues = append(issues, domain.ValidationIssue{
			Attribute: fe.Attribute,
			Code:      fe.Code,
			Message:   fe.Message,
		})
	}
	return domain.Validation(issues), nil
}

// classifyTransaction maps a transaction status onto an outcome.
func classifyTransaction(tx *bt.Transaction) *domain.Outcome {
	switch string(tx.Status) {
	case "processor_declined", "settlement_declined":
		return domain.Declined(tx.ProcessorResponseText)
	case "gateway_rejected":
		reason := string(tx.GatewayRejectionReason)
		if reason == "" {
			reason = tx.ProcessorResponseText
		}
		return domain.Rejected(reason)
	case "failed":
		return domain.Failed(tx.ProcessorResponseText)
	}
	return domain.Success(tx.Id)
}

func isNotFound(err error) bool {
	var apiErr bt.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode() == http.StatusNotFound
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrTransport, op, err)
}
