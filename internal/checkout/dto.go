package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is returned to the client so it can hand the shopper to the gateway.
type Result struct {
	SaleID     uuid.UUID `json:"sale_id"`
	PaymentURL string    `json:"payment_url"`
	IframeURL  string    `json:"iframe_url,omitempty"`
}

// SaleCreatedEvent is emitted when a checkout persists a pending sale.
type SaleCreatedEvent struct {
	SaleID     uuid.UUID       `json:"sale_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	VendorID   uuid.UUID       `json:"vendor_id"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"item_count"`
}
