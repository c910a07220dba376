package service

import (
	"context"
	"fmt"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// PlanGroup is the set of allocations billed by one processor plan.
type PlanGroup struct {
	PlanID        string
	Price         int64 // minor units
	CampaignNames []string
	CampaignIDs   []int64
}

// PlanResolver finds the processor plan a campaign is billed on.
type PlanResolver struct {
	campaigns ports.CampaignStore
	settings  ports.SettingsStore
}

// NewPlanResolver creates a plan resolver.
func NewPlanResolver(campaigns ports.CampaignStore, settings ports.SettingsStore) *PlanResolver {
	return &PlanResolver{campaigns: campaigns, settings: settings}
}

// DefaultMapping returns the site-wide plan for every period in env.
// Unset periods map to "".
func (r *PlanResolver) DefaultMapping(ctx context.Context, env domain.Environment) (domain.PlanMapping, error) {
	mapping := make(domain.PlanMapping, len(domain.Periods))
	for _, period := range domain.Periods {
		planID, err := getString(ctx, r.settings, defaultPlanSetting(env, period))
		if err != nil {
			return nil, err
		}
		mapping[period] = planID
	}
	return mapping, nil
}

// Resolve returns the plan id for a campaign and period, falling back to
// the default mapping. Returns "" when neither is set.
func (r *PlanResolver) Resolve(ctx context.Context, env domain.Environment, period domain.Period, campaignID int64) (string, error) {
	mapping, err := r.campaigns.GetPlanMapping(ctx, campaignID, env)
	if err != nil {
		return "", fmt.Errorf("failed to load plan mapping for campaign %d: %w", campaignID, err)
	}
	if planID := mapping[period]; planID != "" {
		return planID, nil
	}
	return getString(ctx, r.settings, defaultPlanSetting(env, period))
}

// Group resolves every allocation of the donation and groups them by plan,
// in order of first appearance. It fails with domain.ErrState if any
// allocation has no plan, so no subscription is created for a partial match.
func (r *PlanResolver) Group(ctx context.Context, env domain.Environment, period domain.Period, donation *domain.Donation) ([]PlanGroup, error) {
	if period.BillingFrequency() == 0 {
		return nil, domain.NewServiceError(domain.ErrState,
			fmt.Sprintf("unsupported billing period %q", period), "INVALID_PERIOD")
	}

	var groups []PlanGroup
	index := make(map[string]int)

	for _, a := range donation.Allocations {
		planID, err := r.Resolve(ctx, env, period, a.CampaignID)
		if err != nil {
			return nil, err
		}
		if planID == "" {
			return nil, domain.NewServiceError(domain.ErrState,
				"Unable to create recurring donation without default plan.", "MISSING_PLAN")
		}

		i, ok := index[planID]
		if !ok {
			i = len(groups)
			index[planID] = i
			groups = append(groups, PlanGroup{PlanID: planID})
		}
		groups[i].Price += domain.ToMinorUnits(a.Amount, donation.Currency)
		groups[i].CampaignNames = append(groups[i].CampaignNames, a.CampaignName)
		groups[i].CampaignIDs = append(groups[i].CampaignIDs, a.CampaignID)
	}

	if len(groups) == 0 {
		return nil, domain.NewServiceError(domain.ErrState, "donation has no campaign allocations", "NO_ALLOCATIONS")
	}
	return groups, nil
}

// FilterPlans keeps the plans billed at the period's frequency.
func FilterPlans(plans []domain.Plan, period domain.Period) []domain.Plan {
	frequency := period.BillingFrequency()
	if frequency == 0 {
		return plans
	}
	filtered := make([]domain.Plan, 0, len(plans))
	for _, p := range plans {
		if p.BillingFrequency == frequency {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
