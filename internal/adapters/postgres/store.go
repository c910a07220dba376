package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// Store implements the donation, donor, subscription and campaign stores.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// updateColumns updates one row and reports domain.ErrNotFound when no row
// matched.
func (s *Store) updateColumns(ctx context.Context, model interface{}, id int64, values map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetDonation loads a donation with its allocations.
func (s *Store) GetDonation(ctx context.Context, id int64) (*domain.Donation, error) {
	var row Donation
	err := s.db.WithContext(ctx).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&row, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

// FindByTransactionID loads the donation carrying a Braintree transaction id.
func (s *Store) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Donation, error) {
	var row Donation
	err := s.db.WithContext(ctx).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("gateway_transaction_id = ?", transactionID).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

// CreateDonation inserts a donation and its allocations and sets donation.ID.
func (s *Store) CreateDonation(ctx context.Context, donation *domain.Donation) error {
	row := Donation{
		DonorID:              donation.DonorID,
		Total:                donation.Total,
		Currency:             donation.Currency,
		Status:               string(donation.Status),
		Environment:          string(donation.Environment),
		GatewayTransactionID: donation.GatewayTransactionID,
		SubscriptionID:       donation.SubscriptionID,
	}
	if !donation.CreatedAt.IsZero() {
		row.CreatedAt = donation.CreatedAt
	}
	for _, a := range donation.Allocations {
		row.Allocations = append(row.Allocations, Allocation{
			CampaignID:   a.CampaignID,
			CampaignName: a.CampaignName,
			Amount:       a.Amount,
		})
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	donation.ID = row.ID
	return nil
}

// UpdateDonationStatus sets a donation's status.
func (s *Store) UpdateDonationStatus(ctx context.Context, id int64, status domain.DonationStatus) error {
	return s.updateColumns(ctx, &Donation{}, id, map[string]interface{}{"status": string(status)})
}

// SetDonationTransactionID stores the Braintree transaction id.
func (s *Store) SetDonationTransactionID(ctx context.Context, id int64, transactionID string) error {
	return s.updateColumns(ctx, &Donation{}, id, map[string]interface{}{"gateway_transaction_id": transactionID})
}

// AppendDonationLog adds an audit line.
func (s *Store) AppendDonationLog(ctx context.Context, id int64, message string) error {
	return s.db.WithContext(ctx).Create(&DonationLog{DonationID: id, Message: message}).Error
}

// DonationLogs returns a donation's audit lines, oldest first.
func (s *Store) DonationLogs(ctx context.Context, id int64) ([]string, error) {
	var messages []string
	err := s.db.WithContext(ctx).Model(&DonationLog{}).
		Where("donation_id = ?", id).
		Order("id").
		Pluck("message", &messages).Error
	return messages, err
}

// GetDonor loads a donor.
func (s *Store) GetDonor(ctx context.Context, id int64) (*domain.Donor, error) {
	var row Donor
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

// SetCustomerID stores the donor's Braintree customer id for env.
func (s *Store) SetCustomerID(ctx context.Context, donorID int64, env domain.Environment, customerID string) error {
	column := "live_customer_id"
	if env.IsTest() {
		column = "test_customer_id"
	}
	return s.updateColumns(ctx, &Donor{}, donorID, map[string]interface{}{column: customerID})
}

// GetSubscription loads a subscription.
func (s *Store) GetSubscription(ctx context.Context, id int64) (*domain.Subscription, error) {
	var row Subscription
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

// FindByGatewayID loads the subscription carrying a Braintree subscription id.
func (s *Store) FindByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error) {
	var row Subscription
	err := s.db.WithContext(ctx).
		Where("gateway_subscription_id = ?", gatewaySubscriptionID).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return row.toDomain(), nil
}

// CreateSubscription inserts a subscription and sets sub.ID.
func (s *Store) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	row := Subscription{
		DonorID:               sub.DonorID,
		InitialDonationID:     sub.InitialDonationID,
		Period:                string(sub.Period),
		PlanID:                sub.PlanID,
		Status:                string(sub.Status),
		Environment:           string(sub.Environment),
		GatewaySubscriptionID: sub.GatewaySubscriptionID,
		BillingCycles:         sub.BillingCycles,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	sub.ID = row.ID
	return nil
}

// UpdateSubscriptionStatus sets a subscription's status.
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id int64, status domain.SubscriptionStatus) error {
	return s.updateColumns(ctx, &Subscription{}, id, map[string]interface{}{"status": string(status)})
}

// SetGatewaySubscriptionID binds a subscription to its Braintree subscription and plan.
func (s *Store) SetGatewaySubscriptionID(ctx context.Context, id int64, gatewayID, planID string) error {
	return s.updateColumns(ctx, &Subscription{}, id, map[string]interface{}{
		"gateway_subscription_id": gatewayID,
		"plan_id":                 planID,
	})
}

// SetFailedTransaction records the transaction of a failed renewal.
func (s *Store) SetFailedTransaction(ctx context.Context, id int64, transactionID string) error {
	return s.updateColumns(ctx, &Subscription{}, id, map[string]interface{}{"failed_transaction_id": transactionID})
}

// AppendSubscriptionLog adds an audit line.
func (s *Store) AppendSubscriptionLog(ctx context.Context, id int64, message string) error {
	return s.db.WithContext(ctx).Create(&SubscriptionLog{SubscriptionID: id, Message: message}).Error
}

// GetPlanMapping returns the campaign's plans for env by period.
func (s *Store) GetPlanMapping(ctx context.Context, campaignID int64, env domain.Environment) (domain.PlanMapping, error) {
	var rows []CampaignPlan
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND environment = ?", campaignID, string(env)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	mapping := make(domain.PlanMapping, len(rows))
	for _, r := range rows {
		mapping[domain.Period(r.Period)] = r.PlanID
	}
	return mapping, nil
}

// SetCampaignPlan maps a campaign's period to a plan, replacing any
// existing mapping.
func (s *Store) SetCampaignPlan(ctx context.Context, campaignID int64, env domain.Environment, period domain.Period, planID string) error {
	row := CampaignPlan{
		CampaignID:  campaignID,
		Environment: string(env),
		Period:      string(period),
		PlanID:      planID,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "environment"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan_id"}),
	}).Create(&row).Error
}
