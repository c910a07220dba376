package domain

// Statement descriptor limits imposed by the processor.
const (
	DescriptorNameLength = 22
	DescriptorURLLength  = 13
	DescriptorSeparator  = "*"
	LineItemNameLength   = 35
)

// LineItemKindDebit marks a line item that adds to the total.
const LineItemKindDebit = "debit"

// LineItem is one campaign allocation on a transaction. Amounts are in
// minor units.
type LineItem struct {
	Name        string `json:"name"`
	ProductCode string `json:"product_code"`
	Kind        string `json:"kind"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	TotalAmount int64  `json:"total_amount"`
}

// Descriptor is what appears on the donor's card statement.
type Descriptor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TransactionRequest is a sale, built fresh for every submission.
// Amount is in the currency's minor unit.
type TransactionRequest struct {
	Amount               int64      `json:"amount"`
	Currency             string     `json:"currency"`
	OrderID              string     `json:"order_id"`
	CustomerID           string     `json:"customer_id,omitempty"`
	PaymentMethodToken   string     `json:"payment_method_token,omitempty"`
	PaymentMethodNonce   string     `json:"payment_method_nonce,omitempty"`
	DeviceData           string     `json:"device_data,omitempty"`
	ThreeDSecureRequired bool       `json:"three_d_secure_required,omitempty"`
	SubmitForSettlement  bool       `json:"submit_for_settlement"`
	LineItems            []LineItem `json:"line_items"`
	Descriptor           Descriptor `json:"descriptor"`

	// Routing is merged in by the caller after the request is built.
	MerchantAccountID string `json:"merchant_account_id,omitempty"`
}

// SubscriptionRequest creates a processor subscription on a vaulted payment
// method. Price is in minor units.
type SubscriptionRequest struct {
	PlanID             string     `json:"plan_id"`
	PaymentMethodToken string     `json:"payment_method_token"`
	Price              int64      `json:"price"`
	Currency           string     `json:"currency"`
	BillingCycles      int        `json:"billing_cycles"` // 0 = never expires
	Descriptor         Descriptor `json:"descriptor"`
	MerchantAccountID  string     `json:"merchant_account_id,omitempty"`
}

// CustomerRequest creates a processor customer.
type CustomerRequest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// AddressRequest creates a billing address on a processor customer.
type AddressRequest struct {
	FirstName         string
	LastName          string
	StreetAddress     string
	ExtendedAddress   string
	Locality          string
	Region            string
	PostalCode        string
	CountryCodeAlpha2 string
}

// PaymentMethodRequest vaults a nonce against a customer.
type PaymentMethodRequest struct {
	CustomerID                    string
	Nonce                         string
	BillingAddressID              string
	DeviceData                    string
	VerifyCard                    bool
	VerificationMerchantAccountID string
}

// PaymentMethodResult is a vaulted payment method.
type PaymentMethodResult struct {
	Token string
	// VerificationStatus is the 3-D Secure status reported by the processor,
	// empty when no verification ran.
	VerificationStatus string
}
