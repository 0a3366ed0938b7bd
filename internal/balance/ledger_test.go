package balance

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBalanceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS balances (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL UNIQUE,
  pending_credit NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func pendingCredit(t *testing.T, db *gorm.DB, vendorID uuid.UUID) decimal.Decimal {
	t.Helper()
	var raw string
	require.NoError(t, db.Raw(`SELECT pending_credit FROM balances WHERE vendor_id = ?`, vendorID).Scan(&raw).Error)
	value, err := decimal.NewFromString(raw)
	require.NoError(t, err)
	return value
}

func TestNetCreditWithholdsCommission(t *testing.T) {
	gross := decimal.RequireFromString("200.00")
	net := NetCredit(gross)
	require.True(t, net.Equal(decimal.RequireFromString("190.00")), "got %s", net)
}

func TestCreditCreatesBalanceOnFirstUse(t *testing.T) {
	db := setupBalanceTestDB(t)
	ledger := NewLedger()
	vendorID := uuid.New()

	net, err := ledger.Credit(context.Background(), db, vendorID, decimal.RequireFromString("200.00"))
	require.NoError(t, err)
	require.True(t, net.Equal(decimal.RequireFromString("190.00")))
	require.True(t, pendingCredit(t, db, vendorID).Equal(net))
}

func TestCreditAccumulates(t *testing.T) {
	db := setupBalanceTestDB(t)
	ledger := NewLedger()
	vendorID := uuid.New()

	_, err := ledger.Credit(context.Background(), db, vendorID, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	_, err = ledger.Credit(context.Background(), db, vendorID, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	require.True(t, pendingCredit(t, db, vendorID).Equal(decimal.RequireFromString("190.00")))
}

func TestReverseRemovesExactlyTheCreditedAmount(t *testing.T) {
	db := setupBalanceTestDB(t)
	ledger := NewLedger()
	vendorID := uuid.New()
	gross := decimal.RequireFromString("200.00")

	_, err := ledger.Credit(context.Background(), db, vendorID, gross)
	require.NoError(t, err)

	net, err := ledger.Reverse(context.Background(), db, vendorID, gross)
	require.NoError(t, err)
	require.True(t, net.Equal(decimal.RequireFromString("190.00")))
	require.True(t, pendingCredit(t, db, vendorID).IsZero())
}

func TestReverseRequiresExistingBalance(t *testing.T) {
	db := setupBalanceTestDB(t)
	ledger := NewLedger()

	_, err := ledger.Reverse(context.Background(), db, uuid.New(), decimal.RequireFromString("50.00"))
	require.Error(t, err)
}
