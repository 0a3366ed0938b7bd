package callbacks

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/souqly/souqly-backend/pkg/paymob"
)

// TransactionCallback is the webhook body the gateway posts after a payment
// attempt. The HMAC arrives separately as a query parameter. Intent-API
// callbacks nest the transaction under obj with the intention buried in the
// payment key claims; the slimmer server-to-server notification carries a
// top-level intention reference and a transaction field instead.
type TransactionCallback struct {
	Type        string              `json:"type"`
	Intention   CallbackIntention   `json:"intention"`
	Obj         CallbackTransaction `json:"obj"`
	Transaction CallbackTransaction `json:"transaction"`
}

// CallbackIntention is the top-level intention reference on a callback.
type CallbackIntention struct {
	ID string `json:"id"`
}

// Body returns the transaction object from whichever envelope the gateway
// used.
func (c TransactionCallback) Body() CallbackTransaction {
	if c.Obj.ID != 0 {
		return c.Obj
	}
	return c.Transaction
}

// IntentionID returns the payment intention the callback settles.
func (c TransactionCallback) IntentionID() string {
	if c.Intention.ID != "" {
		return c.Intention.ID
	}
	return c.Body().PaymentKeyClaims.NextPaymentIntention
}

// CallbackTransaction is the gateway transaction object inside a callback.
type CallbackTransaction struct {
	ID                   int64  `json:"id"`
	AmountCents          int64  `json:"amount_cents"`
	Success              bool   `json:"success"`
	Pending              bool   `json:"pending"`
	IsRefunded           bool   `json:"is_refunded"`
	IsVoided             bool   `json:"is_voided"`
	ErrorOccured         bool   `json:"error_occured"`
	Is3DSecure           bool   `json:"is_3d_secure"`
	IsAuth               bool   `json:"is_auth"`
	IsCapture            bool   `json:"is_capture"`
	IsStandalonePayment  bool   `json:"is_standalone_payment"`
	HasParentTransaction bool   `json:"has_parent_transaction"`
	IntegrationID        int64  `json:"integration_id"`
	Owner                int64  `json:"owner"`
	Currency             string `json:"currency"`
	CreatedAt            string `json:"created_at"`
	Order                struct {
		ID int64 `json:"id"`
	} `json:"order"`
	SourceData struct {
		Pan     string `json:"pan"`
		SubType string `json:"sub_type"`
		Type    string `json:"type"`
	} `json:"source_data"`
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
	PaymentKeyClaims struct {
		NextPaymentIntention string `json:"next_payment_intention"`
	} `json:"payment_key_claims"`
}

func (t CallbackTransaction) hmacFields() paymob.TransactionHMACFields {
	return paymob.TransactionHMACFields{
		AmountCents:         t.AmountCents,
		CreatedAt:           t.CreatedAt,
		Currency:            t.Currency,
		ErrorOccured:        t.ErrorOccured,
		HasParentTxn:        t.HasParentTransaction,
		ID:                  t.ID,
		IntegrationID:       t.IntegrationID,
		Is3DSecure:          t.Is3DSecure,
		IsAuth:              t.IsAuth,
		IsCapture:           t.IsCapture,
		IsRefunded:          t.IsRefunded,
		IsStandalonePayment: t.IsStandalonePayment,
		IsVoided:            t.IsVoided,
		OrderID:             t.Order.ID,
		Owner:               t.Owner,
		Pending:             t.Pending,
		SourcePan:           t.SourceData.Pan,
		SourceSubType:       t.SourceData.SubType,
		SourceType:          t.SourceData.Type,
		Success:             t.Success,
	}
}

// SalePaidEvent is emitted when the gateway confirms payment for a sale.
type SalePaidEvent struct {
	SaleID        uuid.UUID       `json:"sale_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	VendorID      uuid.UUID       `json:"vendor_id"`
	Total         decimal.Decimal `json:"total"`
	VendorCredit  decimal.Decimal `json:"vendor_credit"`
	GatewayTxnID  string          `json:"gateway_txn_id"`
}

// SalePaymentFailedEvent is emitted when the gateway reports a failed attempt.
type SalePaymentFailedEvent struct {
	SaleID       uuid.UUID       `json:"sale_id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	VendorID     uuid.UUID       `json:"vendor_id"`
	Total        decimal.Decimal `json:"total"`
	FailureCode  string          `json:"failure_code"`
	GatewayTxnID string          `json:"gateway_txn_id"`
}
