package service

import (
	"strconv"
	"strings"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// BuildTransaction assembles a sale request for a donation. It has no side
// effects; merchant account routing and the customer id are set by the caller.
func BuildTransaction(donation *domain.Donation, payment domain.PaymentData, site domain.SiteInfo) (*domain.TransactionRequest, error) {
	if donation == nil {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest, "donation is required", "MISSING_DONATION")
	}
	if payment.Nonce == "" && payment.PaymentMethodToken == "" {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest, "payment nonce or token is required", "MISSING_PAYMENT")
	}

	req := &domain.TransactionRequest{
		Amount:              domain.ToMinorUnits(donation.Total, donation.Currency),
		Currency:            strings.ToUpper(donation.Currency),
		OrderID:             domain.FormatID(donation.ID),
		SubmitForSettlement: true,
		LineItems:           BuildLineItems(donation),
		Descriptor:          BuildDescriptor(site, donation.CampaignNames()),
	}

	if payment.Vaulted() {
		req.PaymentMethodToken = payment.PaymentMethodToken
		return req, nil
	}

	req.PaymentMethodNonce = payment.Nonce
	req.ThreeDSecureRequired = payment.RequireThreeDS
	req.DeviceData = payment.DeviceData

	return req, nil
}

// BuildLineItems returns one debit line item per campaign allocation.
func BuildLineItems(donation *domain.Donation) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(donation.Allocations))
	for _, a := range donation.Allocations {
		amount := domain.ToMinorUnits(a.Amount, donation.Currency)
		items = append(items, domain.LineItem{
			Name:        truncate(a.CampaignName, domain.LineItemNameLength),
			ProductCode: strconv.FormatInt(a.CampaignID, 10),
			Kind:        domain.LineItemKindDebit,
			Quantity:    1,
			UnitAmount:  amount,
			TotalAmount: amount,
		})
	}
	return items
}

// BuildSubscription assembles a subscription request for one plan group.
func BuildSubscription(group PlanGroup, paymentMethodToken, currency string, billingCycles int, site domain.SiteInfo) *domain.SubscriptionRequest {
	return &domain.SubscriptionRequest{
		PlanID:             group.PlanID,
		PaymentMethodToken: paymentMethodToken,
		Price:              group.Price,
		Currency:           strings.ToUpper(currency),
		BillingCycles:      billingCycles,
		Descriptor:         BuildDescriptor(site, group.CampaignNames),
	}
}

// BuildDescriptor derives the statement descriptor from the site and the
// campaigns donated to.
//
// The name is "<company>*<product>", 22 characters at most. The company part
// is padded or cut to 3, 7 or 12 characters and the product part gets the
// remaining 18, 14 or 9.
func BuildDescriptor(site domain.SiteInfo, campaigns []string) domain.Descriptor {
	company := sanitizeDescriptor(site.Name)
	if company == "" {
		company = sanitizeDescriptor(site.Host)
	}

	width := 12
	switch n := len(company); {
	case n <= 3:
		width = 3
	case n <= 7:
		width = 7
	}
	company = padRight(truncate(company, width), width)

	product := sanitizeDescriptor(strings.Join(campaigns, ","))
	product = strings.TrimRight(truncate(product, domain.DescriptorNameLength-width-len(domain.DescriptorSeparator)), " ")

	return domain.Descriptor{
		Name: company + domain.DescriptorSeparator + product,
		URL:  truncate(strings.ToLower(site.Host), domain.DescriptorURLLength),
	}
}

// sanitizeDescriptor keeps ASCII letters, digits, spaces and ". + -",
// collapsing runs of spaces. Commas become spaces.
func sanitizeDescriptor(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '+', r == '-':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == ',' || r == '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
