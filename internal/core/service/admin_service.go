package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// DashboardLinks are shortcuts into the Braintree control panel.
type DashboardLinks struct {
	Environment        domain.Environment `json:"environment"`
	NewPlan            string             `json:"new_plan"`
	NewMerchantAccount string             `json:"new_merchant_account"`
}

// AdminService holds the operator actions: refunds, cancellations and
// gateway lookups.
type AdminService struct {
	resolver      *CredentialResolver
	settings      ports.SettingsStore
	donations     ports.DonationStore
	subscriptions ports.SubscriptionStore
	logger        *zap.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(
	resolver *CredentialResolver,
	settings ports.SettingsStore,
	donations ports.DonationStore,
	subscriptions ports.SubscriptionStore,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		resolver:      resolver,
		settings:      settings,
		donations:     donations,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// recordEnvironment returns env, or the active environment when the record
// predates environment tagging.
func (s *AdminService) recordEnvironment(ctx context.Context, env domain.Environment) (domain.Environment, error) {
	if env != "" {
		return env, nil
	}
	return ActiveEnvironment(ctx, s.settings)
}

// Refund refunds a completed donation in full.
func (s *AdminService) Refund(ctx context.Context, donationID int64) (*domain.Outcome, error) {
	donation, err := s.donations.GetDonation(ctx, donationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load donation %d: %w", donationID, err)
	}
	if donation.GatewayTransactionID == "" {
		return nil, domain.NewServiceError(domain.ErrState, "donation has no Braintree transaction", "NOT_REFUNDABLE")
	}
	if donation.Status == domain.DonationRefunded {
		return nil, domain.NewServiceError(domain.ErrState, "donation has already been refunded", "ALREADY_REFUNDED")
	}

	env, err := s.recordEnvironment(ctx, donation.Environment)
	if err != nil {
		return nil, err
	}
	processor, creds, err := s.resolver.Resolve(ctx, env, nil)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(zap.Int64("donation_id", donationID), zap.String("environment", string(env)))

	outcome, err := processor.Refund(ctx, donation.GatewayTransactionID)
	if err != nil {
		log.Error("Braintree refund failed", zap.Error(err))
		s.appendDonationLog(ctx, donationID, fmt.Sprintf("Braintree refund failed: %v", err))
		return nil, err
	}
	if !outcome.Succeeded() {
		log.Warn("Braintree refund not successful", zap.String("kind", string(outcome.Kind)))
		s.appendDonationLog(ctx, donationID, fmt.Sprintf("Braintree refund failed: %s", outcome.Notice()))
		return outcome, domain.NewServiceError(outcome.Err(), outcome.Notice(), domain.ErrorCode(outcome.Err()))
	}

	s.appendDonationLog(ctx, donationID, fmt.Sprintf("Braintree refund transaction ID: %s",
		DashboardURL(env, creds.MerchantID, "transactions", outcome.TransactionID)))
	if err := s.donations.UpdateDonationStatus(ctx, donationID, domain.DonationRefunded); err != nil {
		return outcome, err
	}

	log.Info("Donation refunded", zap.String("refund_transaction_id", outcome.TransactionID))
	return outcome, nil
}

// CancelSubscription cancels a recurring donation in Braintree and locally.
func (s *AdminService) CancelSubscription(ctx context.Context, subscriptionID int64) error {
	sub, err := s.subscriptions.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to load subscription %d: %w", subscriptionID, err)
	}
	if sub.GatewaySubscriptionID == "" {
		return domain.NewServiceError(domain.ErrState, "subscription has no Braintree subscription", "NOT_CANCELLABLE")
	}

	env, err := s.recordEnvironment(ctx, sub.Environment)
	if err != nil {
		return err
	}
	processor, _, err := s.resolver.Resolve(ctx, env, nil)
	if err != nil {
		return err
	}

	if err := processor.CancelSubscription(ctx, sub.GatewaySubscriptionID); err != nil {
		s.logger.Error("Braintree cancellation failed",
			zap.Int64("subscription_id", subscriptionID), zap.Error(err))
		s.appendSubscriptionLog(ctx, subscriptionID, fmt.Sprintf("Braintree cancellation failed: %v", err))
		return err
	}

	s.appendSubscriptionLog(ctx, subscriptionID, "Subscription cancelled in Braintree.")
	return s.subscriptions.UpdateSubscriptionStatus(ctx, subscriptionID, domain.SubscriptionCancelled)
}

// ListPlans returns the plans defined in env. A non-empty period keeps only
// plans billed at that frequency.
func (s *AdminService) ListPlans(ctx context.Context, env domain.Environment, period domain.Period) ([]domain.Plan, error) {
	processor, _, err := s.resolver.Resolve(ctx, env, nil)
	if err != nil {
		return nil, err
	}
	plans, err := processor.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	if period == "" {
		return plans, nil
	}
	return FilterPlans(plans, period), nil
}

// FindMerchantAccount looks up a merchant account, defaulting to the one
// configured for env.
func (s *AdminService) FindMerchantAccount(ctx context.Context, env domain.Environment, merchantAccountID string) (*domain.MerchantAccount, error) {
	processor, creds, err := s.resolver.Resolve(ctx, env, nil)
	if err != nil {
		return nil, err
	}
	if merchantAccountID == "" {
		merchantAccountID = creds.MerchantAccountID
	}
	if merchantAccountID == "" {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest, "merchant account id is required", "MISSING_MERCHANT_ACCOUNT")
	}
	return processor.FindMerchantAccount(ctx, merchantAccountID)
}

// Links returns control panel shortcuts for env. Without a merchant id they
// fall back to the control panel home.
func (s *AdminService) Links(ctx context.Context, env domain.Environment) (*DashboardLinks, error) {
	merchantID, err := getString(ctx, s.settings, gatewaySetting(env, "merchant_id"))
	if err != nil {
		return nil, err
	}

	base := "https://www." + dashboardHost
	extension := "new_for_production"
	if env.IsTest() {
		base = "https://" + dashboardSandboxSubdomain + dashboardHost
		extension = "new_for_sandbox"
	}

	links := &DashboardLinks{Environment: env, NewPlan: base, NewMerchantAccount: base}
	if merchantID != "" {
		links.NewPlan = fmt.Sprintf("%s/merchants/%s/plans/new", base, merchantID)
		links.NewMerchantAccount = fmt.Sprintf("%s/merchants/%s/merchant_accounts/%s", base, merchantID, extension)
	}
	return links, nil
}

// EndpointStatus reports whether a verified webhook has ever been received.
func (s *AdminService) EndpointStatus(ctx context.Context) (string, error) {
	status, err := getString(ctx, s.settings, SettingWebhookEndpointStatus)
	if err != nil {
		return "", err
	}
	if status != WebhookEndpointActive {
		return WebhookEndpointMissing, nil
	}
	return status, nil
}

func (s *AdminService) appendDonationLog(ctx context.Context, id int64, message string) {
	if err := s.donations.AppendDonationLog(ctx, id, message); err != nil {
		s.logger.Warn("Failed to append donation log", zap.Int64("donation_id", id), zap.Error(err))
	}
}

func (s *AdminService) appendSubscriptionLog(ctx context.Context, id int64, message string) {
	if err := s.subscriptions.AppendSubscriptionLog(ctx, id, message); err != nil {
		s.logger.Warn("Failed to append subscription log", zap.Int64("subscription_id", id), zap.Error(err))
	}
}
