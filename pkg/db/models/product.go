package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents the canonical vendor listing. Sellable variants with
// price and stock live in ProductItem.
type Product struct {
	ID          uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    uuid.UUID     `gorm:"column:vendor_id;type:uuid;not null"`
	Title       string        `gorm:"column:title;not null"`
	Description *string       `gorm:"column:description"`
	IsActive    bool          `gorm:"column:is_active;not null;default:true"`
	Items       []ProductItem `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
