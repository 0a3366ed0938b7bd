package paymob

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// IntentCreateParams describes a payment intention. Amounts are minor units
// (piastres for EGP).
type IntentCreateParams struct {
	AmountCents      int64
	Currency         string
	SpecialReference string
	Items            []LineItem
	Billing          BillingData
}

// LineItem is a single purchasable line sent to the gateway.
type LineItem struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
}

// BillingData is the customer contact block the gateway requires on every intention.
type BillingData struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Intent is the registered payment intention.
type Intent struct {
	ID           string
	ClientSecret string
	PaymentKey   string
}

// RefundResult reports the outcome of a refund call.
type RefundResult struct {
	TransactionID string
	Success       bool
}

func (p IntentCreateParams) validate() error {
	if p.AmountCents <= 0 {
		return errors.New("amount must be positive")
	}
	if p.Currency == "" {
		return errors.New("currency is required")
	}
	if len(p.Items) == 0 {
		return errors.New("at least one line item is required")
	}
	for i, item := range p.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d quantity must be positive", i)
		}
		if item.AmountCents < 0 {
			return fmt.Errorf("item %d amount must not be negative", i)
		}
	}
	return nil
}

func (p IntentCreateParams) toRequest(cardIntegrationID int) map[string]any {
	body := map[string]any{
		"amount":          p.AmountCents,
		"currency":        p.Currency,
		"payment_methods": []any{cardIntegrationID},
		"items":           p.Items,
		"billing_data":    p.Billing,
		"customer": map[string]any{
			"first_name": p.Billing.FirstName,
			"last_name":  p.Billing.LastName,
			"email":      p.Billing.Email,
		},
	}
	if p.SpecialReference != "" {
		body["special_reference"] = p.SpecialReference
	}
	return body
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	PaymentKeys  []struct {
		Key string `json:"key"`
	} `json:"payment_keys"`
}

type refundResponse struct {
	ID      json.Number `json:"id"`
	Success bool        `json:"success"`
}

// TransactionHMACFields carries the webhook transaction fields Paymob signs,
// concatenated in its documented order before hashing.
type TransactionHMACFields struct {
	AmountCents         int64
	CreatedAt           string
	Currency            string
	ErrorOccured        bool
	HasParentTxn        bool
	ID                  int64
	IntegrationID       int64
	Is3DSecure          bool
	IsAuth              bool
	IsCapture           bool
	IsRefunded          bool
	IsStandalonePayment bool
	IsVoided            bool
	OrderID             int64
	Owner               int64
	Pending             bool
	SourcePan           string
	SourceSubType       string
	SourceType          string
	Success             bool
}

func (f TransactionHMACFields) concatenated() string {
	parts := []string{
		strconv.FormatInt(f.AmountCents, 10),
		f.CreatedAt,
		f.Currency,
		boolString(f.ErrorOccured),
		boolString(f.HasParentTxn),
		strconv.FormatInt(f.ID, 10),
		strconv.FormatInt(f.IntegrationID, 10),
		boolString(f.Is3DSecure),
		boolString(f.IsAuth),
		boolString(f.IsCapture),
		boolString(f.IsRefunded),
		boolString(f.IsStandalonePayment),
		boolString(f.IsVoided),
		strconv.FormatInt(f.OrderID, 10),
		strconv.FormatInt(f.Owner, 10),
		boolString(f.Pending),
		f.SourcePan,
		f.SourceSubType,
		f.SourceType,
		boolString(f.Success),
	}
	out := ""
	for _, part := range parts {
		out += part
	}
	return out
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
