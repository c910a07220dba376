package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

const webhookLedgerPrefix = "braintree:webhook:"

// WebhookService verifies Braintree webhooks and applies them to local
// subscription and donation records.
type WebhookService struct {
	resolver      *CredentialResolver
	plans         *PlanResolver
	settings      ports.SettingsStore
	donations     ports.DonationStore
	subscriptions ports.SubscriptionStore
	ledger        ports.EventLedger
	listener      ports.EventListener
	ledgerTTL     time.Duration
	logger        *zap.Logger
}

// NewWebhookService creates a new webhook service. ledger and listener may
// be nil.
func NewWebhookService(
	resolver *CredentialResolver,
	plans *PlanResolver,
	settings ports.SettingsStore,
	donations ports.DonationStore,
	subscriptions ports.SubscriptionStore,
	ledger ports.EventLedger,
	listener ports.EventListener,
	ledgerTTL time.Duration,
	logger *zap.Logger,
) *WebhookService {
	if listener == nil {
		listener = NewLoggingListener(logger)
	}
	return &WebhookService{
		resolver:      resolver,
		plans:         plans,
		settings:      settings,
		donations:     donations,
		subscriptions: subscriptions,
		ledger:        ledger,
		listener:      listener,
		ledgerTTL:     ledgerTTL,
		logger:        logger,
	}
}

// webhookContext carries what every handler needs for one delivery.
type webhookContext struct {
	env   domain.Environment
	creds domain.Credentials
	event *domain.WebhookEvent
	log   *zap.Logger
}

// Receive validates a signature/payload pair and dispatches the event.
// Any returned error should be answered with HTTP 500.
func (s *WebhookService) Receive(ctx context.Context, signature, payload string) (*domain.WebhookResult, error) {
	if signature == "" || payload == "" {
		return nil, domain.NewServiceError(domain.ErrWebhookValidationFailed,
			"Invalid Braintree event.", "MISSING_SIGNATURE")
	}

	env, err := ActiveEnvironment(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	processor, creds, err := s.resolver.Resolve(ctx, env, nil)
	if err != nil {
		return nil, err
	}

	event, err := processor.ParseWebhook(signature, payload)
	if err != nil {
		s.logger.Warn("Braintree webhook rejected", zap.String("environment", string(env)), zap.Error(err))
		return nil, domain.NewServiceError(domain.ErrWebhookValidationFailed,
			"Invalid Braintree event.", "INVALID_SIGNATURE")
	}

	s.markEndpointActive(ctx)

	wc := &webhookContext{
		env:   env,
		creds: creds,
		event: event,
		log: s.logger.With(
			zap.String("kind", string(event.Kind)),
			zap.String("gateway_subscription_id", event.SubscriptionID),
			zap.String("environment", string(env)),
		),
	}

	key := webhookLedgerPrefix + payloadDigest(payload)
	claimed := s.claim(ctx, wc.log, key)
	if !claimed {
		wc.log.Info("Duplicate Braintree webhook ignored")
		return &domain.WebhookResult{Kind: event.Kind, Message: "Webhook already processed.", Duplicate: true}, nil
	}

	result, err := s.dispatch(ctx, wc)
	if err != nil {
		wc.log.Error("Webhook processing error", zap.Error(err))
		if s.ledger != nil {
			if relErr := s.ledger.Release(ctx, key); relErr != nil {
				wc.log.Warn("Failed to release webhook claim", zap.Error(relErr))
			}
		}
		return nil, fmt.Errorf("webhook processing error: %w", err)
	}

	wc.log.Info("Webhook processed", zap.String("message", result.Message))
	return result, nil
}

// claim reports whether this delivery should be dispatched. A ledger
// failure lets the delivery through; status handlers skip no-op
// transitions and renewals are looked up by transaction id.
func (s *WebhookService) claim(ctx context.Context, log *zap.Logger, key string) bool {
	if s.ledger == nil {
		return true
	}
	ok, err := s.ledger.Claim(ctx, key, s.ledgerTTL)
	if err != nil {
		log.Warn("Webhook ledger unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (s *WebhookService) markEndpointActive(ctx context.Context) {
	status, err := getString(ctx, s.settings, SettingWebhookEndpointStatus)
	if err != nil {
		s.logger.Warn("Failed to read webhook endpoint status", zap.Error(err))
		return
	}
	if status == WebhookEndpointActive {
		return
	}
	if err := s.settings.Set(ctx, SettingWebhookEndpointStatus, WebhookEndpointActive); err != nil {
		s.logger.Warn("Failed to mark webhook endpoint active", zap.Error(err))
	}
}

func (s *WebhookService) dispatch(ctx context.Context, wc *webhookContext) (*domain.WebhookResult, error) {
	var (
		message string
		err     error
	)

	switch wc.event.Kind {
	case domain.WebhookSubscriptionCanceled:
		message, err = s.onStatusChange(ctx, wc, domain.SubscriptionCancelled, "")
	case domain.WebhookSubscriptionChargedSuccessfully:
		message, err = s.onCharged(ctx, wc)
	case domain.WebhookSubscriptionWentActive:
		message, err = s.onStatusChange(ctx, wc, domain.SubscriptionActive, "")
	case domain.WebhookSubscriptionWentPastDue:
		message, err = s.onPastDue(ctx, wc)
	case domain.WebhookSubscriptionExpired:
		message, err = s.onStatusChange(ctx, wc, domain.SubscriptionCancelled, "Subscription expired in Braintree.")
	case domain.WebhookCheck:
		message = "Webhook check received."
	default:
		// Unrecognized kinds never fail the delivery.
		if lerr := s.listener.OnWebhookEvent(ctx, wc.event); lerr != nil {
			wc.log.Warn("Failed to forward webhook event", zap.Error(lerr))
			message = fmt.Sprintf("Webhook event %s not forwarded.", wc.event.Kind)
		} else {
			message = fmt.Sprintf("Webhook event %s forwarded.", wc.event.Kind)
		}
	}
	if err != nil {
		return nil, err
	}

	return &domain.WebhookResult{Kind: wc.event.Kind, Message: message}, nil
}

// findSubscription returns nil with a descriptive message when no local
// record carries the processor subscription id.
func (s *WebhookService) findSubscription(ctx context.Context, wc *webhookContext) (*domain.Subscription, string, error) {
	if wc.event.SubscriptionID == "" {
		return nil, "Webhook has no subscription.", nil
	}
	sub, err := s.subscriptions.FindByGatewayID(ctx, wc.event.SubscriptionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Sprintf("No subscription found for Braintree subscription %s.", wc.event.SubscriptionID), nil
	}
	if err != nil {
		return nil, "", err
	}
	return sub, "", nil
}

func (s *WebhookService) onStatusChange(ctx context.Context, wc *webhookContext, status domain.SubscriptionStatus, logLine string) (string, error) {
	sub, message, err := s.findSubscription(ctx, wc)
	if sub == nil {
		return message, err
	}

	if logLine != "" {
		s.appendSubscriptionLog(ctx, sub.ID, logLine)
	}
	if sub.Status == status {
		return fmt.Sprintf("Subscription %d already %s.", sub.ID, status), nil
	}
	if err := s.subscriptions.UpdateSubscriptionStatus(ctx, sub.ID, status); err != nil {
		return "", err
	}
	return fmt.Sprintf("Subscription %d marked %s.", sub.ID, status), nil
}

func (s *WebhookService) onPastDue(ctx context.Context, wc *webhookContext) (string, error) {
	sub, message, err := s.findSubscription(ctx, wc)
	if sub == nil {
		return message, err
	}

	if tx, ok := wc.event.LatestTransaction(); ok {
		if err := s.subscriptions.SetFailedTransaction(ctx, sub.ID, tx.ID); err != nil {
			return "", err
		}
		s.appendSubscriptionLog(ctx, sub.ID, fmt.Sprintf("Braintree renewal failed: %s",
			DashboardURL(wc.env, wc.creds.MerchantID, "transactions", tx.ID)))
	}
	if err := s.subscriptions.UpdateSubscriptionStatus(ctx, sub.ID, domain.SubscriptionPastDue); err != nil {
		return "", err
	}
	return fmt.Sprintf("Subscription %d marked %s.", sub.ID, domain.SubscriptionPastDue), nil
}

// onCharged completes the seed donation for the first charge and records a
// renewal donation for every later one.
func (s *WebhookService) onCharged(ctx context.Context, wc *webhookContext) (string, error) {
	sub, message, err := s.findSubscription(ctx, wc)
	if sub == nil {
		return message, err
	}

	tx, ok := wc.event.LatestTransaction()
	if !ok {
		return fmt.Sprintf("Subscription %d charge has no transaction.", sub.ID), nil
	}
	txLog := fmt.Sprintf("Braintree transaction: %s", DashboardURL(wc.env, wc.creds.MerchantID, "transactions", tx.ID))

	seed, err := s.donations.GetDonation(ctx, sub.InitialDonationID)
	if err != nil {
		return "", fmt.Errorf("failed to load initial donation %d: %w", sub.InitialDonationID, err)
	}

	if len(wc.event.Transactions) == 1 {
		if seed.Status == domain.DonationCompleted && seed.GatewayTransactionID == tx.ID {
			return fmt.Sprintf("Donation %d already completed.", seed.ID), nil
		}
		// Sibling plans share the seed; the first charge recorded keeps it.
		if seed.Status == domain.DonationCompleted && seed.GatewayTransactionID != "" {
			s.appendDonationLog(ctx, seed.ID, txLog)
			s.appendSubscriptionLog(ctx, sub.ID, fmt.Sprintf("First charge %s logged on donation %d.", tx.ID, seed.ID))
			return fmt.Sprintf("Donation %d already completed; transaction %s logged.", seed.ID, tx.ID), nil
		}
		if err := s.donations.SetDonationTransactionID(ctx, seed.ID, tx.ID); err != nil {
			return "", err
		}
		s.appendDonationLog(ctx, seed.ID, txLog)
		if err := s.donations.UpdateDonationStatus(ctx, seed.ID, domain.DonationCompleted); err != nil {
			return "", err
		}
		return fmt.Sprintf("Donation %d completed.", seed.ID), nil
	}

	existing, err := s.donations.FindByTransactionID(ctx, tx.ID)
	switch {
	case err == nil:
		return fmt.Sprintf("Renewal for transaction %s already recorded as donation %d.", tx.ID, existing.ID), nil
	case !errors.Is(err, domain.ErrNotFound):
		return "", fmt.Errorf("failed to look up renewal transaction %s: %w", tx.ID, err)
	}

	renewal := &domain.Donation{
		DonorID:              seed.DonorID,
		Total:                tx.Amount.InexactFloat64(),
		Currency:             seed.Currency,
		Allocations:          s.renewalAllocations(ctx, wc, sub, seed, tx),
		Status:               domain.DonationCompleted,
		Environment:          wc.env,
		GatewayTransactionID: tx.ID,
		SubscriptionID:       sub.ID,
		CreatedAt:            time.Now(),
	}
	if tx.Currency != "" {
		renewal.Currency = tx.Currency
	}
	if err := s.donations.CreateDonation(ctx, renewal); err != nil {
		return "", fmt.Errorf("failed to create renewal donation: %w", err)
	}
	s.appendDonationLog(ctx, renewal.ID, txLog)
	s.appendSubscriptionLog(ctx, sub.ID, fmt.Sprintf("Renewal donation %d created.", renewal.ID))

	return fmt.Sprintf("Renewal donation %d created.", renewal.ID), nil
}

// renewalAllocations keeps the seed allocations billed on this subscription's
// plan. A single remaining allocation takes the whole charged amount.
func (s *WebhookService) renewalAllocations(ctx context.Context, wc *webhookContext, sub *domain.Subscription, seed *domain.Donation, tx domain.WebhookTransaction) []domain.Allocation {
	allocations := seed.Allocations
	if sub.PlanID != "" && s.plans != nil {
		filtered := make([]domain.Allocation, 0, len(seed.Allocations))
		for _, a := range seed.Allocations {
			planID, err := s.plans.Resolve(ctx, wc.env, sub.Period, a.CampaignID)
			if err != nil {
				wc.log.Warn("Failed to resolve renewal plan", zap.Int64("campaign_id", a.CampaignID), zap.Error(err))
				continue
			}
			if planID == sub.PlanID {
				filtered = append(filtered, a)
			}
		}
		if len(filtered) > 0 {
			allocations = filtered
		}
	}

	out := make([]domain.Allocation, len(allocations))
	copy(out, allocations)
	if len(out) == 1 {
		out[0].Amount = tx.Amount.InexactFloat64()
	}
	return out
}

func (s *WebhookService) appendDonationLog(ctx context.Context, id int64, message string) {
	if err := s.donations.AppendDonationLog(ctx, id, message); err != nil {
		s.logger.Warn("Failed to append donation log", zap.Int64("donation_id", id), zap.Error(err))
	}
}

func (s *WebhookService) appendSubscriptionLog(ctx context.Context, id int64, message string) {
	if err := s.subscriptions.AppendSubscriptionLog(ctx, id, message); err != nil {
		s.logger.Warn("Failed to append subscription log", zap.Int64("subscription_id", id), zap.Error(err))
	}
}

// payloadDigest keys the ledger. The payload is signed, so equal digests
// mean the same notification.
func payloadDigest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// LoggingListener is the default EventListener; it only logs the event.
type LoggingListener struct {
	logger *zap.Logger
}

// NewLoggingListener creates a LoggingListener.
func NewLoggingListener(logger *zap.Logger) *LoggingListener {
	return &LoggingListener{logger: logger}
}

// OnWebhookEvent implements ports.EventListener.
func (l *LoggingListener) OnWebhookEvent(_ context.Context, event *domain.WebhookEvent) error {
	l.logger.Info("Unhandled Braintree webhook",
		zap.String("kind", string(event.Kind)),
		zap.Time("timestamp", event.Timestamp),
		zap.String("gateway_subscription_id", event.SubscriptionID))
	return nil
}
