package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleItem snapshots a purchased line: the quantity reserved from stock and
// the unit price at time of sale.
type SaleItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SaleID        uuid.UUID       `gorm:"column:sale_id;type:uuid;not null"`
	ProductItemID uuid.UUID       `gorm:"column:product_item_id;type:uuid;not null"`
	Name          string          `gorm:"column:name;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity      int             `gorm:"column:quantity;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
