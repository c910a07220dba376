package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// Donor-facing notices not derived from a processor outcome.
const (
	noticeNotConfigured       = "Braintree payment gateway is not configured. Unable to proceed with payment."
	noticeSubscriptionFailed  = "Subscription not processed successfully in payment gateway."
	noticeTransactionFailed   = "Donation not processed successfully in payment gateway."
	subscriptionStatusActive  = "Active"
	dashboardHost             = "braintreegateway.com"
	dashboardSandboxSubdomain = "sandbox."
)

// ProcessRequest asks for a donation to be charged. SubscriptionID is set
// when the donor picked a billing period.
type ProcessRequest struct {
	DonationID     int64              `json:"donation_id" binding:"required"`
	SubscriptionID int64              `json:"subscription_id,omitempty"`
	Payment        domain.PaymentData `json:"payment"`
}

// ProcessResult is the outcome of a submission as shown to the donor.
//
// For a recurring donation billed on several plans, Outcomes holds one
// outcome per created subscription in plan order, Outcome is the last
// processor result (the failing one when a plan was refused) and
// TransactionID is the first subscription's initial charge, which is the
// one recorded on the donation.
type ProcessResult struct {
	Success         bool              `json:"success"`
	DonationID      int64             `json:"donation_id"`
	TransactionID   string            `json:"transaction_id,omitempty"`
	SubscriptionIDs []string          `json:"subscription_ids,omitempty"`
	Outcome         *domain.Outcome   `json:"outcome,omitempty"`
	Outcomes        []*domain.Outcome `json:"outcomes,omitempty"`
	Notices         []string          `json:"notices,omitempty"`
	ErrorCode       string            `json:"error_code,omitempty"`
}

// DonationService submits donations to Braintree and records the result.
type DonationService struct {
	resolver      *CredentialResolver
	provisioner   *Provisioner
	plans         *PlanResolver
	settings      ports.SettingsStore
	donations     ports.DonationStore
	donors        ports.DonorStore
	subscriptions ports.SubscriptionStore
	site          domain.SiteInfo
	logger        *zap.Logger
}

// NewDonationService creates a new donation service.
func NewDonationService(
	resolver *CredentialResolver,
	provisioner *Provisioner,
	plans *PlanResolver,
	settings ports.SettingsStore,
	donations ports.DonationStore,
	donors ports.DonorStore,
	subscriptions ports.SubscriptionStore,
	site domain.SiteInfo,
	logger *zap.Logger,
) *DonationService {
	return &DonationService{
		resolver:      resolver,
		provisioner:   provisioner,
		plans:         plans,
		settings:      settings,
		donations:     donations,
		donors:        donors,
		subscriptions: subscriptions,
		site:          site,
		logger:        logger,
	}
}

// ProcessDonation charges a pending donation, or sets up its subscriptions
// when req.SubscriptionID is set.
//
// Payment failures never come back as errors: the donation stays pending
// and the result carries the notice. An error is returned only when the
// donation, donor or subscription records cannot be loaded.
func (s *DonationService) ProcessDonation(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	donation, err := s.donations.GetDonation(ctx, req.DonationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load donation %d: %w", req.DonationID, err)
	}
	if donation.Status == domain.DonationCompleted {
		return nil, domain.NewServiceError(domain.ErrState, "donation has already been completed", "ALREADY_COMPLETED")
	}

	donor, err := s.donors.GetDonor(ctx, donation.DonorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load donor %d: %w", donation.DonorID, err)
	}

	var sub *domain.Subscription
	if req.SubscriptionID != 0 {
		sub, err = s.subscriptions.GetSubscription(ctx, req.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load subscription %d: %w", req.SubscriptionID, err)
		}
	}

	env, err := ActiveEnvironment(ctx, s.settings)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.Int64("donation_id", donation.ID),
		zap.String("environment", string(env)),
	)

	processor, creds, err := s.resolver.Resolve(ctx, env, nil)
	if err != nil {
		log.Error("Braintree gateway unavailable", zap.Error(err))
		return s.fail(ctx, donation, noticeNotConfigured, "Braintree error: gateway is not configured", err), nil
	}

	if sub != nil {
		return s.processRecurring(ctx, log, processor, creds, env, donation, donor, sub, req.Payment), nil
	}
	return s.processOneTime(ctx, log, processor, creds, env, donation, donor, req.Payment), nil
}

func (s *DonationService) processOneTime(
	ctx context.Context,
	log *zap.Logger,
	processor ports.Processor,
	creds domain.Credentials,
	env domain.Environment,
	donation *domain.Donation,
	donor *domain.Donor,
	payment domain.PaymentData,
) *ProcessResult {
	if err := ClassifyVerification(payment.ThreeDSecureStatus); err != nil {
		log.Warn("3-D Secure verification failed", zap.String("status", payment.ThreeDSecureStatus))
		return s.fail(ctx, donation, domain.Message(err), "Braintree error: 3-D Secure verification failed", err)
	}

	txReq, err := BuildTransaction(donation, payment, s.site)
	if err != nil {
		return s.fail(ctx, donation, domain.Message(err), "Braintree error: "+domain.Message(err), err)
	}

	customerID, err := s.provisioner.EnsureCustomer(ctx, processor, env, donor)
	if err != nil {
		return s.transportFailure(ctx, log, donation, err)
	}
	txReq.CustomerID = customerID
	txReq.MerchantAccountID = creds.MerchantAccountID

	outcome, err := processor.Sale(ctx, txReq)
	if err != nil {
		return s.transportFailure(ctx, log, donation, err)
	}
	if !outcome.Succeeded() {
		log.Warn("Braintree sale not successful", zap.String("kind", string(outcome.Kind)), zap.String("reason", outcome.Reason))
		result := s.fail(ctx, donation, outcome.Notice(), outcome.LogLine(), outcome.Err())
		result.Outcome = outcome
		return result
	}

	s.completeDonation(ctx, log, env, creds, donation, outcome.TransactionID)
	log.Info("Donation completed", zap.String("transaction_id", outcome.TransactionID))

	return &ProcessResult{
		Success:       true,
		DonationID:    donation.ID,
		TransactionID: outcome.TransactionID,
		Outcome:       outcome,
	}
}

func (s *DonationService) processRecurring(
	ctx context.Context,
	log *zap.Logger,
	processor ports.Processor,
	creds domain.Credentials,
	env domain.Environment,
	donation *domain.Donation,
	donor *domain.Donor,
	sub *domain.Subscription,
	payment domain.PaymentData,
) *ProcessResult {
	log = log.With(zap.Int64("subscription_id", sub.ID), zap.String("period", string(sub.Period)))

	// Every allocation must resolve before anything is created upstream.
	groups, err := s.plans.Group(ctx, env, sub.Period, donation)
	if err != nil {
		log.Warn("Unable to resolve subscription plans", zap.Error(err))
		return s.fail(ctx, donation, "ERROR: "+domain.Message(err), "Braintree error: "+domain.Message(err), err)
	}

	provisioned, err := s.provisioner.Provision(ctx, processor, env, donor, payment, creds.MerchantAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrVerificationFailed) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidRequest) {
			return s.fail(ctx, donation, domain.Message(err), "Braintree error: "+domain.Message(err), err)
		}
		return s.transportFailure(ctx, log, donation, err)
	}

	result := &ProcessResult{DonationID: donation.ID}
	localIDs := make([]int64, 0, len(groups))
	allActive := true
	var firstTransactionID string

	for i, group := range groups {
		subReq := BuildSubscription(group, provisioned.PaymentMethodToken, donation.Currency, sub.BillingCycles, s.site)
		subReq.MerchantAccountID = creds.MerchantAccountID

		outcome, err := processor.CreateSubscription(ctx, subReq)
		if err != nil {
			return s.transportFailure(ctx, log, donation, err)
		}
		if !outcome.Succeeded() {
			log.Warn("Braintree subscription not created",
				zap.String("plan_id", group.PlanID),
				zap.String("kind", string(outcome.Kind)))
			notice := outcome.Notice()
			if outcome.Kind == domain.OutcomeFailed {
				notice = noticeSubscriptionFailed
			}
			failed := s.fail(ctx, donation, notice, outcome.LogLine(), outcome.Err())
			failed.Outcome = outcome
			failed.Outcomes = result.Outcomes
			failed.SubscriptionIDs = result.SubscriptionIDs
			return failed
		}

		localID := sub.ID
		if i > 0 {
			sibling := &domain.Subscription{
				DonorID:           sub.DonorID,
				InitialDonationID: sub.InitialDonationID,
				Period:            sub.Period,
				Status:            domain.SubscriptionPending,
				Environment:       env,
				BillingCycles:     sub.BillingCycles,
			}
			if err := s.subscriptions.CreateSubscription(ctx, sibling); err != nil {
				log.Error("Failed to record additional subscription",
					zap.String("gateway_subscription_id", outcome.SubscriptionID), zap.Error(err))
				return s.fail(ctx, donation, noticeSubscriptionFailed, "Braintree error: "+err.Error(), domain.ErrState)
			}
			localID = sibling.ID
		}

		if err := s.subscriptions.SetGatewaySubscriptionID(ctx, localID, outcome.SubscriptionID, group.PlanID); err != nil {
			log.Warn("Failed to store Braintree subscription id", zap.Int64("local_id", localID), zap.Error(err))
		}
		s.appendSubscriptionLog(ctx, localID, fmt.Sprintf("Braintree subscription: %s",
			DashboardURL(env, creds.MerchantID, "subscriptions", outcome.SubscriptionID)))

		localIDs = append(localIDs, localID)
		result.SubscriptionIDs = append(result.SubscriptionIDs, outcome.SubscriptionID)
		if firstTransactionID == "" {
			firstTransactionID = outcome.TransactionID
		}
		if outcome.SubscriptionStatus != subscriptionStatusActive {
			allActive = false
		}
		result.Outcome = outcome
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Success = true
	result.TransactionID = firstTransactionID

	if !allActive {
		log.Info("Braintree subscriptions created, awaiting activation", zap.Strings("gateway_subscription_ids", result.SubscriptionIDs))
		return result
	}

	for _, id := range localIDs {
		if err := s.subscriptions.UpdateSubscriptionStatus(ctx, id, domain.SubscriptionActive); err != nil {
			log.Warn("Failed to activate subscription", zap.Int64("local_id", id), zap.Error(err))
		}
	}
	s.completeDonation(ctx, log, env, creds, donation, firstTransactionID)
	log.Info("Recurring donation activated", zap.Strings("gateway_subscription_ids", result.SubscriptionIDs))

	return result
}

// completeDonation records a successful charge on the donation.
func (s *DonationService) completeDonation(ctx context.Context, log *zap.Logger, env domain.Environment, creds domain.Credentials, donation *domain.Donation, transactionID string) {
	if transactionID != "" {
		if err := s.donations.SetDonationTransactionID(ctx, donation.ID, transactionID); err != nil {
			log.Warn("Failed to store transaction id", zap.Error(err))
		}
		s.appendDonationLog(ctx, donation.ID, fmt.Sprintf("Braintree transaction: %s",
			DashboardURL(env, creds.MerchantID, "transactions", transactionID)))
	}
	if err := s.donations.UpdateDonationStatus(ctx, donation.ID, domain.DonationCompleted); err != nil {
		log.Error("Failed to complete donation", zap.Error(err))
	}
}

// fail records a failed attempt. The donation status is left untouched.
func (s *DonationService) fail(ctx context.Context, donation *domain.Donation, notice, logLine string, err error) *ProcessResult {
	s.appendDonationLog(ctx, donation.ID, logLine)
	return &ProcessResult{
		Success:    false,
		DonationID: donation.ID,
		Notices:    []string{notice},
		ErrorCode:  domain.ErrorCode(err),
	}
}

func (s *DonationService) transportFailure(ctx context.Context, log *zap.Logger, donation *domain.Donation, err error) *ProcessResult {
	log.Error("Braintree request failed", zap.Error(err))
	return s.fail(ctx, donation, noticeTransactionFailed, "Braintree error: "+err.Error(), domain.ErrTransport)
}

func (s *DonationService) appendDonationLog(ctx context.Context, id int64, message string) {
	if err := s.donations.AppendDonationLog(ctx, id, message); err != nil {
		s.logger.Warn("Failed to append donation log", zap.Int64("donation_id", id), zap.Error(err))
	}
}

func (s *DonationService) appendSubscriptionLog(ctx context.Context, id int64, message string) {
	if err := s.subscriptions.AppendSubscriptionLog(ctx, id, message); err != nil {
		s.logger.Warn("Failed to append subscription log", zap.Int64("subscription_id", id), zap.Error(err))
	}
}

// DashboardURL links to a transaction or subscription in the Braintree
// control panel. resource is "transactions" or "subscriptions".
func DashboardURL(env domain.Environment, merchantID, resource, id string) string {
	subdomain := ""
	if env.IsTest() {
		subdomain = dashboardSandboxSubdomain
	}
	return fmt.Sprintf("https://%s%s/merchants/%s/%s/%s", subdomain, dashboardHost, merchantID, resource, id)
}
