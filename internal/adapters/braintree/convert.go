package braintree

import (
	bt "github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// toDecimal converts a minor-unit amount to the SDK's decimal, which is
// expressed in major units: 2500 USD becomes 25.00, 1000 JPY stays 1000.
func toDecimal(minor int64, currency string) *bt.Decimal {
	return bt.NewDecimal(minor, int(domain.CurrencyScale(currency)))
}

// fromDecimal converts an SDK decimal to a shopspring decimal. nil is zero.
func fromDecimal(d *bt.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return decimal.New(d.Unscaled, -int32(d.Scale))
}

func toLineItems(items []domain.LineItem, currency string) bt.TransactionLineItemRequests {
	if len(items) == 0 {
		return nil
	}
	out := make(bt.TransactionLineItemRequests, 0, len(items))
	for _, item := range items {
		out = append(out, &bt.TransactionLineItemRequest{
			Name:        item.Name,
			Kind:        bt.TransactionLineItemKind(item.Kind),
			Quantity:    bt.NewDecimal(int64(item.Quantity), 0),
			UnitAmount:  toDecimal(item.UnitAmount, currency),
			TotalAmount: toDecimal(item.TotalAmount, currency),
			ProductCode: item.ProductCode,
		})
	}
	return out
}
