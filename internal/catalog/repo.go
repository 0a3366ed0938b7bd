package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/pkg/db/models"
)

// ItemWithVendor pairs a sellable variant with the vendor who owns it.
type ItemWithVendor struct {
	Item     models.ProductItem
	VendorID uuid.UUID
}

// Repository defines catalog lookups needed by checkout.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductItem(ctx context.Context, id uuid.UUID) (*models.ProductItem, error)
	FindItemsWithVendor(ctx context.Context, ids []uuid.UUID) ([]ItemWithVendor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProductItem(ctx context.Context, id uuid.UUID) (*models.ProductItem, error) {
	var item models.ProductItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemsWithVendor(ctx context.Context, ids []uuid.UUID) ([]ItemWithVendor, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	type row struct {
		models.ProductItem
		VendorID uuid.UUID `gorm:"column:vendor_id"`
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Table("product_items").
		Select("product_items.*, products.vendor_id AS vendor_id").
		Joins("JOIN products ON products.id = product_items.product_id").
		Where("product_items.id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]ItemWithVendor, 0, len(rows))
	for _, rec := range rows {
		out = append(out, ItemWithVendor{Item: rec.ProductItem, VendorID: rec.VendorID})
	}
	return out, nil
}
