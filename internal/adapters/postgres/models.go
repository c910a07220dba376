package postgres

import (
	"time"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// Donor is a payer and their per-environment Braintree customer ids.
type Donor struct {
	ID             int64  `gorm:"primaryKey"`
	FirstName      string `gorm:"type:varchar(100)"`
	LastName       string `gorm:"type:varchar(100)"`
	Email          string `gorm:"type:varchar(255);index"`
	Phone          string `gorm:"type:varchar(50)"`
	Address        string `gorm:"type:varchar(255)"`
	Address2       string `gorm:"type:varchar(255)"`
	City           string `gorm:"type:varchar(100)"`
	State          string `gorm:"type:varchar(100)"`
	Postcode       string `gorm:"type:varchar(20)"`
	Country        string `gorm:"type:varchar(2)"`
	TestCustomerID string `gorm:"type:varchar(64)"`
	LiveCustomerID string `gorm:"type:varchar(64)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (d *Donor) toDomain() *domain.Donor {
	return &domain.Donor{
		ID:             d.ID,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		Phone:          d.Phone,
		Address:        d.Address,
		Address2:       d.Address2,
		City:           d.City,
		State:          d.State,
		Postcode:       d.Postcode,
		Country:        d.Country,
		TestCustomerID: d.TestCustomerID,
		LiveCustomerID: d.LiveCustomerID,
	}
}

// Donation is a gift and its campaign allocations.
type Donation struct {
	ID                   int64        `gorm:"primaryKey"`
	DonorID              int64        `gorm:"index;not null"`
	Total                float64      `gorm:"type:numeric(14,2);not null"`
	Currency             string       `gorm:"type:varchar(3);not null"`
	Status               string       `gorm:"type:varchar(20);default:'pending';index"`
	Environment          string       `gorm:"type:varchar(10)"`
	GatewayTransactionID string       `gorm:"type:varchar(64);index"`
	SubscriptionID       int64        `gorm:"index"`
	Allocations          []Allocation `gorm:"foreignKey:DonationID"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (d *Donation) toDomain() *domain.Donation {
	allocations := make([]domain.Allocation, 0, len(d.Allocations))
	for _, a := range d.Allocations {
		allocations = append(allocations, domain.Allocation{
			CampaignID:   a.CampaignID,
			CampaignName: a.CampaignName,
			Amount:       a.Amount,
		})
	}
	return &domain.Donation{
		ID:                   d.ID,
		DonorID:              d.DonorID,
		Total:                d.Total,
		Currency:             d.Currency,
		Allocations:          allocations,
		Status:               domain.DonationStatus(d.Status),
		Environment:          domain.Environment(d.Environment),
		GatewayTransactionID: d.GatewayTransactionID,
		SubscriptionID:       d.SubscriptionID,
		CreatedAt:            d.CreatedAt,
	}
}

// Allocation is the share of a donation given to one campaign.
type Allocation struct {
	ID           uint    `gorm:"primaryKey"`
	DonationID   int64   `gorm:"index;not null"`
	CampaignID   int64   `gorm:"index;not null"`
	CampaignName string  `gorm:"type:varchar(255)"`
	Amount       float64 `gorm:"type:numeric(14,2);not null"`
}

// DonationLog is one audit line on a donation.
type DonationLog struct {
	ID         uint   `gorm:"primaryKey"`
	DonationID int64  `gorm:"index;not null"`
	Message    string `gorm:"type:text"`
	CreatedAt  time.Time
}

// Subscription is a recurring donation.
type Subscription struct {
	ID                    int64  `gorm:"primaryKey"`
	DonorID               int64  `gorm:"index;not null"`
	InitialDonationID     int64  `gorm:"index;not null"`
	Period                string `gorm:"type:varchar(20)"`
	PlanID                string `gorm:"type:varchar(64)"`
	Status                string `gorm:"type:varchar(20);default:'pending'"`
	Environment           string `gorm:"type:varchar(10)"`
	GatewaySubscriptionID string `gorm:"type:varchar(64);index"`
	BillingCycles         int
	FailedTransactionID   string `gorm:"type:varchar(64)"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (s *Subscription) toDomain() *domain.Subscription {
	return &domain.Subscription{
		ID:                    s.ID,
		DonorID:               s.DonorID,
		InitialDonationID:     s.InitialDonationID,
		Period:                domain.Period(s.Period),
		PlanID:                s.PlanID,
		Status:                domain.SubscriptionStatus(s.Status),
		Environment:           domain.Environment(s.Environment),
		GatewaySubscriptionID: s.GatewaySubscriptionID,
		BillingCycles:         s.BillingCycles,
		FailedTransactionID:   s.FailedTransactionID,
	}
}

// SubscriptionLog is one audit line on a subscription.
type SubscriptionLog struct {
	ID             uint   `gorm:"primaryKey"`
	SubscriptionID int64  `gorm:"index;not null"`
	Message        string `gorm:"type:text"`
	CreatedAt      time.Time
}

// CampaignPlan maps a campaign's billing period to a Braintree plan.
type CampaignPlan struct {
	ID          uint   `gorm:"primaryKey"`
	CampaignID  int64  `gorm:"uniqueIndex:idx_campaign_plan;not null"`
	Environment string `gorm:"type:varchar(10);uniqueIndex:idx_campaign_plan;not null"`
	Period      string `gorm:"type:varchar(20);uniqueIndex:idx_campaign_plan;not null"`
	PlanID      string `gorm:"type:varchar(64);not null"`
}

// Option is one entry of the nested settings store, keyed by dotted path.
type Option struct {
	Path      string `gorm:"primaryKey;type:varchar(255)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}
