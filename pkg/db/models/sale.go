package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/souqly/souqly-backend/pkg/enums"
)

// Sale is the commercial record of a checkout: one customer, one vendor,
// one transaction. Status only ever moves pending -> cancelled; payment
// outcome lives on the transaction.
type Sale struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID    uuid.UUID        `gorm:"column:customer_id;type:uuid;not null"`
	VendorID      uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null"`
	AddressID     uuid.UUID        `gorm:"column:address_id;type:uuid;not null"`
	TransactionID uuid.UUID        `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex"`
	Total         decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null"`
	Currency      enums.Currency   `gorm:"column:currency;type:text;not null;default:'EGP'"`
	Status        enums.SaleStatus `gorm:"column:status;type:sale_status;not null;default:'pending'"`
	Items         []SaleItem       `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	Transaction   *Transaction     `gorm:"foreignKey:TransactionID;references:ID"`
	CancelledAt   *time.Time       `gorm:"column:cancelled_at"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
