package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is a single product item selection in a cart.
type CartItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID        uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductItemID uuid.UUID `gorm:"column:product_item_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	Quantity      int       `gorm:"column:quantity;not null;default:1"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
