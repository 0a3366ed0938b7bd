package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
)

// Reserver decrements stock when a checkout claims units.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error
}

// Releaser returns reserved stock when a payment fails or a sale is cancelled.
type Releaser interface {
	Release(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error
}

type ledgerImpl struct{}

// NewLedger exposes the default stock ledger implementation.
func NewLedger() interface {
	Reserver
	Releaser
} {
	return ledgerImpl{}
}

// Reserve claims qty units inside the caller's transaction. The guard in the
// WHERE clause makes the decrement atomic: two concurrent checkouts can both
// pass a read-side precheck, but only one wins the conditional update.
func (ledgerImpl) Reserve(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE product_items
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND quantity >= ?
	`, qty, productItemID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"product_item_id": productItemID.String(), "requested": qty})
	}
	return nil
}

// Release restocks qty units inside the caller's transaction.
func (ledgerImpl) Release(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE product_items
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productItemID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	return nil
}
