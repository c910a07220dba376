package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
)

// Form field names posted by the payment widget.
const (
	FieldToken        = "braintree_token"
	FieldDeviceData   = "braintree_device_data"
	FieldThreeDStatus = "braintree_3ds_status"
)

// Data collector modes.
const (
	DataCollectorOff    = "0"
	DataCollectorKount  = "kount"
	DataCollectorPayPal = "paypal"
)

const noticeMissingToken = "Missing payment for Braintree payment gateway. Unable to proceed with payment."

// GooglePayTransactionInfo is the Google Pay transactionInfo object.
type GooglePayTransactionInfo struct {
	TotalPriceStatus string `json:"totalPriceStatus"`
	TotalPrice       string `json:"totalPrice"`
	CurrencyCode     string `json:"currencyCode"`
	CountryCode      string `json:"countryCode,omitempty"`
}

// ApplePayTotal is the total line of an Apple Pay payment request.
type ApplePayTotal struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// ApplePayPaymentRequest is the Apple Pay paymentRequest object.
type ApplePayPaymentRequest struct {
	Total                        ApplePayTotal `json:"total"`
	RequiredBillingContactFields []string      `json:"requiredBillingContactFields"`
}

// WalletTransactionInfo holds the wallet objects that depend on the form total.
type WalletTransactionInfo struct {
	GooglePay GooglePayTransactionInfo `json:"google_pay"`
	ApplePay  ApplePayPaymentRequest   `json:"apple_pay"`
}

// ClientConfig is handed to the payment widget when the form renders.
type ClientConfig struct {
	ClientToken         string                 `json:"client_token"`
	PayPal              bool                   `json:"paypal"`
	Venmo               bool                   `json:"venmo"`
	GooglePay           bool                   `json:"googlepay"`
	ApplePay            bool                   `json:"applepay"`
	ThreeDSecure        bool                   `json:"three_d_secure"`
	GooglePayMerchantID string                 `json:"googlepay_merchant_id,omitempty"`
	Description         string                 `json:"description"`
	DataCollector       string                 `json:"data_collector"`
	Currency            string                 `json:"currency"`
	Country             string                 `json:"country,omitempty"`
	TestMode            bool                   `json:"test_mode"`
	Wallets             *WalletTransactionInfo `json:"wallets"`
}

// ClientConfigService serves the payment widget's side of the form.
type ClientConfigService struct {
	resolver *CredentialResolver
	settings ports.SettingsStore
	currency string
	logger   *zap.Logger
}

// NewClientConfigService creates a new client config service. currency is
// the site currency.
func NewClientConfigService(resolver *CredentialResolver, settings ports.SettingsStore, currency string, logger *zap.Logger) *ClientConfigService {
	return &ClientConfigService{
		resolver: resolver,
		settings: settings,
		currency: strings.ToUpper(currency),
		logger:   logger,
	}
}

// ClientConfig builds the widget configuration for the active environment.
// amount seeds the wallet transaction info.
func (s *ClientConfigService) ClientConfig(ctx context.Context, amount float64) (*ClientConfig, error) {
	env, err := ActiveEnvironment(ctx, s.settings)
	if err != nil {
		return nil, err
	}
	processor, _, err := s.resolver.Resolve(ctx, env, nil)
	if err != nil {
		return nil, err
	}

	token, err := processor.GenerateClientToken(ctx)
	if err != nil {
		s.logger.Error("Failed to generate Braintree client token", zap.String("environment", string(env)), zap.Error(err))
		return nil, err
	}

	cfg := &ClientConfig{
		ClientToken: token,
		Currency:    s.currency,
		TestMode:    env.IsTest(),
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"paypal", &cfg.PayPal},
		{"venmo", &cfg.Venmo},
		{"googlepay", &cfg.GooglePay},
		{"applepay", &cfg.ApplePay},
		{"three_d_secure", &cfg.ThreeDSecure},
	}
	for _, f := range flags {
		if *f.dst, err = getFlag(ctx, s.settings, settingsGatewayPrefix+f.name); err != nil {
			return nil, err
		}
	}

	if cfg.Description, err = getString(ctx, s.settings, settingsGatewayPrefix+"description"); err != nil {
		return nil, err
	}
	if cfg.Country, err = getString(ctx, s.settings, "country"); err != nil {
		return nil, err
	}

	mode, err := getString(ctx, s.settings, settingsGatewayPrefix+"data_collector")
	if err != nil {
		return nil, err
	}
	cfg.DataCollector = normalizeDataCollector(mode)

	// Google Pay only takes a merchant id in production.
	if cfg.GooglePay && !env.IsTest() {
		if cfg.GooglePayMerchantID, err = getString(ctx, s.settings, settingsGatewayPrefix+"googlepay_merchant_id"); err != nil {
			return nil, err
		}
	}

	cfg.Wallets = s.walletInfo(amount, cfg.Description, cfg.Country)
	return cfg, nil
}

// TotalChanged recomputes the wallet transaction info after the donor
// changed the form total.
func (s *ClientConfigService) TotalChanged(ctx context.Context, amount float64) (*WalletTransactionInfo, error) {
	if amount < 0 {
		return nil, domain.NewServiceError(domain.ErrInvalidRequest, "amount must not be negative", "INVALID_AMOUNT")
	}
	description, err := getString(ctx, s.settings, settingsGatewayPrefix+"description")
	if err != nil {
		return nil, err
	}
	country, err := getString(ctx, s.settings, "country")
	if err != nil {
		return nil, err
	}
	return s.walletInfo(amount, description, country), nil
}

func (s *ClientConfigService) walletInfo(amount float64, description, country string) *WalletTransactionInfo {
	formatted := FormatAmount(amount, s.currency)
	return &WalletTransactionInfo{
		GooglePay: GooglePayTransactionInfo{
			TotalPriceStatus: "ESTIMATED",
			TotalPrice:       formatted,
			CurrencyCode:     s.currency,
			CountryCode:      country,
		},
		ApplePay: ApplePayPaymentRequest{
			Total:                        ApplePayTotal{Label: description, Amount: formatted},
			RequiredBillingContactFields: []string{"postalAddress"},
		},
	}
}

// ValidateSubmission checks the widget fields of a submitted form and turns
// them into payment data.
func (s *ClientConfigService) ValidateSubmission(ctx context.Context, values map[string]string) (domain.PaymentData, error) {
	token := strings.TrimSpace(values[FieldToken])
	if token == "" {
		return domain.PaymentData{}, domain.NewServiceError(domain.ErrInvalidRequest, noticeMissingToken, "MISSING_TOKEN")
	}

	requireThreeDS, err := getFlag(ctx, s.settings, settingsGatewayPrefix+"three_d_secure")
	if err != nil {
		return domain.PaymentData{}, err
	}

	payment := domain.PaymentData{
		Nonce:              token,
		DeviceData:         strings.TrimSpace(values[FieldDeviceData]),
		ThreeDSecureStatus: strings.TrimSpace(values[FieldThreeDStatus]),
		RequireThreeDS:     requireThreeDS,
	}
	if err := ClassifyVerification(payment.ThreeDSecureStatus); err != nil {
		return domain.PaymentData{}, err
	}
	return payment, nil
}

// FormatAmount renders amount with the currency's number of decimals, the
// way wallets expect it.
func FormatAmount(amount float64, currency string) string {
	return decimal.NewFromFloat(amount).StringFixed(domain.CurrencyScale(currency))
}

func normalizeDataCollector(mode string) string {
	switch strings.ToLower(mode) {
	case DataCollectorKount:
		return DataCollectorKount
	case DataCollectorPayPal:
		return DataCollectorPayPal
	}
	return DataCollectorOff
}
