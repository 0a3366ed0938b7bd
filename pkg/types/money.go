package types

import "github.com/shopspring/decimal"

// MinorUnits converts a decimal money amount to gateway minor units
// (piastres for EGP), rounding to the nearest unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
