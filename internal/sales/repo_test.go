package sales

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/pkg/db/models"
	"github.com/souqly/souqly-backend/pkg/enums"
)

func setupSalesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  intent_id TEXT NOT NULL UNIQUE,
  gateway_txn_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'EGP',
  failure_code TEXT,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS sales (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  address_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL UNIQUE,
  total TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'EGP',
  status TEXT NOT NULL DEFAULT 'pending',
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS sale_items (
  id TEXT PRIMARY KEY,
  sale_id TEXT NOT NULL,
  product_item_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedSale(t *testing.T, repo Repository) *models.Sale {
	t.Helper()
	ctx := context.Background()

	txn, err := repo.CreateTransaction(ctx, &models.Transaction{
		ID:       uuid.New(),
		IntentID: "pi_" + uuid.NewString()[:8],
		Status:   enums.TransactionStatusPending,
		Amount:   decimal.RequireFromString("200.00"),
		Currency: enums.CurrencyEGP,
	})
	require.NoError(t, err)

	sale, err := repo.CreateSale(ctx, &models.Sale{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		VendorID:      uuid.New(),
		AddressID:     uuid.New(),
		TransactionID: txn.ID,
		Total:         decimal.RequireFromString("200.00"),
		Currency:      enums.CurrencyEGP,
		Status:        enums.SaleStatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, repo.CreateSaleItems(ctx, []models.SaleItem{
		{ID: uuid.New(), SaleID: sale.ID, ProductItemID: uuid.New(), Name: "Ceramic Mug", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 2},
	}))
	return sale
}

func TestRepoFindSale(t *testing.T) {
	repo := NewRepository(setupSalesTestDB(t))
	seeded := seedSale(t, repo)

	sale, err := repo.FindSale(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, sale.ID)
	require.Equal(t, enums.SaleStatusPending, sale.Status)
	require.NotNil(t, sale.Transaction)
	require.Equal(t, enums.TransactionStatusPending, sale.Transaction.Status)
	require.Len(t, sale.Items, 1)
	require.Equal(t, 2, sale.Items[0].Quantity)
}

func TestRepoFindSaleByIntentID(t *testing.T) {
	repo := NewRepository(setupSalesTestDB(t))
	seeded := seedSale(t, repo)

	txn, err := repo.FindTransaction(context.Background(), seeded.TransactionID)
	require.NoError(t, err)

	sale, err := repo.FindSaleByIntentID(context.Background(), txn.IntentID)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, sale.ID)

	_, err = repo.FindSaleByIntentID(context.Background(), "pi_unknown")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepoUpdateSaleStatusIf(t *testing.T) {
	repo := NewRepository(setupSalesTestDB(t))
	seeded := seedSale(t, repo)
	ctx := context.Background()

	won, err := repo.UpdateSaleStatusIf(ctx, seeded.ID, enums.SaleStatusPending, enums.SaleStatusCancelled)
	require.NoError(t, err)
	require.True(t, won)

	// Second attempt loses the compare-and-set.
	won, err = repo.UpdateSaleStatusIf(ctx, seeded.ID, enums.SaleStatusPending, enums.SaleStatusCancelled)
	require.NoError(t, err)
	require.False(t, won)

	sale, err := repo.FindSale(ctx, seeded.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SaleStatusCancelled, sale.Status)
	require.NotNil(t, sale.CancelledAt)
}

func TestRepoUpdateTransactionStatusIf(t *testing.T) {
	repo := NewRepository(setupSalesTestDB(t))
	seeded := seedSale(t, repo)
	ctx := context.Background()

	moved, err := repo.UpdateTransactionStatusIf(ctx, seeded.TransactionID, enums.TransactionStatusPending, enums.TransactionStatusSuccess)
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = repo.UpdateTransactionStatusIf(ctx, seeded.TransactionID, enums.TransactionStatusPending, enums.TransactionStatusCancelled)
	require.NoError(t, err)
	require.False(t, moved)

	moved, err = repo.UpdateTransactionStatusIf(ctx, seeded.TransactionID, enums.TransactionStatusSuccess, enums.TransactionStatusRefunded)
	require.NoError(t, err)
	require.True(t, moved)

	txn, err := repo.FindTransaction(ctx, seeded.TransactionID)
	require.NoError(t, err)
	require.Equal(t, enums.TransactionStatusRefunded, txn.Status)
	require.NotNil(t, txn.RefundedAt)
}

func TestRepoBindGatewayTxnFirstWriteWins(t *testing.T) {
	repo := NewRepository(setupSalesTestDB(t))
	seeded := seedSale(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.BindGatewayTxn(ctx, seeded.TransactionID, "111"))
	require.NoError(t, repo.BindGatewayTxn(ctx, seeded.TransactionID, "222"))

	txn, err := repo.FindTransaction(ctx, seeded.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, txn.GatewayTxnID)
	require.Equal(t, "111", *txn.GatewayTxnID)
}

func TestRepoSetTransactionFailureCode(t *testing.T) {
	repo := NewRepository(setupSalesTestDB(t))
	seeded := seedSale(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.SetTransactionFailureCode(ctx, seeded.TransactionID, "insufficient funds"))

	txn, err := repo.FindTransaction(ctx, seeded.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, txn.FailureCode)
	require.Equal(t, "insufficient funds", *txn.FailureCode)
}
