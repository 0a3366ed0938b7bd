package balance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
)

// commissionRate is the platform cut withheld from every vendor credit.
var commissionRate = decimal.RequireFromString("0.05")

// Crediter accrues vendor credit when a payment succeeds.
type Crediter interface {
	Credit(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, gross decimal.Decimal) (decimal.Decimal, error)
}

// Reverser claws back previously accrued credit when a paid sale is refunded.
type Reverser interface {
	Reverse(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, gross decimal.Decimal) (decimal.Decimal, error)
}

// NetCredit returns the vendor's share of a gross sale total after commission.
func NetCredit(gross decimal.Decimal) decimal.Decimal {
	return gross.Sub(gross.Mul(commissionRate)).Round(2)
}

type ledgerImpl struct{}

// NewLedger exposes the default balance ledger implementation.
func NewLedger() interface {
	Crediter
	Reverser
} {
	return ledgerImpl{}
}

// Credit adds the net amount to the vendor's pending balance inside the
// caller's transaction, creating the balance row on first credit.
func (ledgerImpl) Credit(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, gross decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for balance credit")
	}
	if gross.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must not be negative")
	}

	net := NetCredit(gross)

	res := tx.WithContext(ctx).Exec(`
		UPDATE balances
		SET pending_credit = pending_credit + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE vendor_id = ?
	`, net, vendorID)
	if res.Error != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "credit balance")
	}
	if res.RowsAffected == 0 {
		insert := tx.WithContext(ctx).Exec(`
			INSERT INTO balances (id, vendor_id, pending_credit, created_at, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		`, uuid.New(), vendorID, net)
		if insert.Error != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, insert.Error, "create balance")
		}
	}
	return net, nil
}

// Reverse removes the net amount previously credited for the same gross total.
func (ledgerImpl) Reverse(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, gross decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for balance reversal")
	}
	if gross.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "reversal amount must not be negative")
	}

	net := NetCredit(gross)

	res := tx.WithContext(ctx).Exec(`
		UPDATE balances
		SET pending_credit = pending_credit - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE vendor_id = ?
	`, net, vendorID)
	if res.Error != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reverse balance")
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeStateConflict, "vendor balance not found")
	}
	return net, nil
}
