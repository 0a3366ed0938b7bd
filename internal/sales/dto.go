package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/souqly/souqly-backend/pkg/enums"
)

// GetSaleInput identifies the sale and the actor asking for it.
type GetSaleInput struct {
	SaleID      uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// CancelInput captures a cancellation request.
type CancelInput struct {
	SaleID      uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
	Reason      string
}

// SaleItemDetail is the read model for a purchased line.
type SaleItemDetail struct {
	ProductItemID uuid.UUID       `json:"product_item_id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
}

// SaleDetail is the read model returned to clients.
type SaleDetail struct {
	ID                uuid.UUID               `json:"id"`
	Status            enums.SaleStatus        `json:"status"`
	TransactionStatus enums.TransactionStatus `json:"transaction_status"`
	Total             decimal.Decimal         `json:"total"`
	Currency          enums.Currency          `json:"currency"`
	Items             []SaleItemDetail        `json:"items"`
	CreatedAt         time.Time               `json:"created_at"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
}

// SaleCancelledEvent is emitted when an unpaid sale is cancelled.
type SaleCancelledEvent struct {
	SaleID     uuid.UUID       `json:"sale_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	VendorID   uuid.UUID       `json:"vendor_id"`
	Total      decimal.Decimal `json:"total"`
	Reason     string          `json:"reason,omitempty"`
}

// SaleRefundedEvent is emitted when a paid sale is cancelled and refunded.
type SaleRefundedEvent struct {
	SaleID         uuid.UUID       `json:"sale_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	VendorID       uuid.UUID       `json:"vendor_id"`
	Total          decimal.Decimal `json:"total"`
	ReversedCredit decimal.Decimal `json:"reversed_credit"`
}
