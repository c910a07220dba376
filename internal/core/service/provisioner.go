package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// failedVerificationStatuses are 3-D Secure statuses that block the payment.
// Any other non-empty status passes.
var failedVerificationStatuses = map[string]struct{}{
	"authenticate_error":            {},
	"authenticate_failed":           {},
	"signature_verification_failed": {},
	"unable_to_authenticate":        {},
	"lookup_enrolled":               {},
	"challenge_required":            {},
	"authenticate_rejected":         {},
}

// ClassifyVerification returns domain.ErrVerificationFailed for a failed 3-D
// Secure status. An empty status means no verification ran.
func ClassifyVerification(status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return nil
	}
	if _, failed := failedVerificationStatuses[status]; failed {
		return domain.NewServiceError(domain.ErrVerificationFailed,
			"Your card could not be verified. Please try another payment method.", "VERIFICATION_FAILED")
	}
	return nil
}

// Provisioned is a vaulted customer and payment method.
type Provisioned struct {
	CustomerID         string
	PaymentMethodToken string
}

// Provisioner makes sure a donor has a processor customer and a vaulted
// payment method.
type Provisioner struct {
	donors ports.DonorStore
	cache  ports.CustomerCache
	logger *zap.Logger
}

// NewProvisioner creates a provisioner. cache may be nil.
func NewProvisioner(donors ports.DonorStore, cache ports.CustomerCache, logger *zap.Logger) *Provisioner {
	if cache == nil {
		cache = noopCustomerCache{}
	}
	return &Provisioner{donors: donors, cache: cache, logger: logger}
}

// EnsureCustomer reuses the donor's stored customer id for env when it still
// resolves, otherwise creates a customer and stores the new id.
//
// Two concurrent submissions may both create a customer; whichever id is
// written last is kept.
func (p *Provisioner) EnsureCustomer(ctx context.Context, processor ports.Processor, env domain.Environment, donor *domain.Donor) (string, error) {
	log := p.logger.With(zap.Int64("donor_id", donor.ID), zap.String("environment", string(env)))

	if stored := donor.CustomerID(env); stored != "" {
		reuse, err := p.resolves(ctx, processor, env, stored)
		if err != nil {
			log.Error("Braintree customer lookup failed", zap.String("customer_id", stored), zap.Error(err))
			return "", err
		}
		if reuse {
			return stored, nil
		}
		log.Info("Stored Braintree customer no longer exists", zap.String("customer_id", stored))
	}

	customerID, err := processor.CreateCustomer(ctx, domain.CustomerRequest{
		FirstName: donor.FirstName,
		LastName:  donor.LastName,
		Email:     donor.Email,
		Phone:     donor.Phone,
	})
	if err != nil {
		log.Error("Braintree customer creation failed", zap.Error(err))
		return "", err
	}

	if err := p.donors.SetCustomerID(ctx, donor.ID, env, customerID); err != nil {
		log.Warn("Failed to store Braintree customer id", zap.String("customer_id", customerID), zap.Error(err))
	}
	if err := p.cache.Remember(ctx, env, customerID); err != nil {
		log.Warn("Failed to cache Braintree customer", zap.Error(err))
	}

	log.Info("Created Braintree customer", zap.String("customer_id", customerID))
	return customerID, nil
}

// resolves reports whether a stored customer id still exists in the processor.
func (p *Provisioner) resolves(ctx context.Context, processor ports.Processor, env domain.Environment, customerID string) (bool, error) {
	if known, err := p.cache.Exists(ctx, env, customerID); err == nil && known {
		return true, nil
	}

	_, err := processor.FindCustomer(ctx, customerID)
	switch {
	case err == nil:
		_ = p.cache.Remember(ctx, env, customerID)
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		_ = p.cache.Forget(ctx, env, customerID)
		return false, nil
	}
	return false, err
}

// Provision ensures the customer exists and vaults the submitted nonce
// against it. Nothing is rolled back on failure.
func (p *Provisioner) Provision(ctx context.Context, processor ports.Processor, env domain.Environment, donor *domain.Donor, payment domain.PaymentData, merchantAccountID string) (*Provisioned, error) {
	customerID, err := p.EnsureCustomer(ctx, processor, env, donor)
	if err != nil {
		return nil, err
	}

	if payment.Vaulted() {
		return &Provisioned{CustomerID: customerID, PaymentMethodToken: payment.PaymentMethodToken}, nil
	}
	if payment.Nonce == "" {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest, "payment nonce is required", "MISSING_NONCE")
	}

	log := p.logger.With(zap.Int64("donor_id", donor.ID), zap.String("customer_id", customerID))

	var addressID string
	if donor.HasAddress() {
		addressID, err = processor.CreateAddress(ctx, customerID, domain.AddressRequest{
			FirstName:         donor.FirstName,
			LastName:          donor.LastName,
			StreetAddress:     donor.Address,
			ExtendedAddress:   donor.Address2,
			Locality:          donor.City,
			Region:            donor.State,
			PostalCode:        donor.Postcode,
			CountryCodeAlpha2: donor.Country,
		})
		if err != nil {
			log.Error("Braintree billing address creation failed", zap.Error(err))
			return nil, err
		}
	}

	req := domain.PaymentMethodRequest{
		CustomerID:       customerID,
		Nonce:            payment.Nonce,
		BillingAddressID: addressID,
	}
	if payment.DeviceData != "" {
		req.DeviceData = payment.DeviceData
		req.VerifyCard = true
		req.VerificationMerchantAccountID = merchantAccountID
	}

	method, err := processor.CreatePaymentMethod(ctx, req)
	if err != nil {
		log.Error("Braintree payment method creation failed", zap.Error(err))
		return nil, err
	}

	status := method.VerificationStatus
	if status == "" {
		status = payment.ThreeDSecureStatus
	}
	if err := ClassifyVerification(status); err != nil {
		log.Warn("3-D Secure verification failed", zap.String("status", status))
		return nil, err
	}

	return &Provisioned{CustomerID: customerID, PaymentMethodToken: method.Token}, nil
}

type noopCustomerCache struct{}

func (noopCustomerCache) Exists(context.Context, domain.Environment, string) (bool, error) {
	return false, nil
}
func (noopCustomerCache) Remember(context.Context, domain.Environment, string) error { return nil }
func (noopCustomerCache) Forget(context.Context, domain.Environment, string) error   { return nil }
