package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/pkg/db/models"
	"github.com/souqly/souqly-backend/pkg/enums"
)

// Repository defines persistence operations for sale/transaction tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	CreateSale(ctx context.Context, sale *models.Sale) (*models.Sale, error)
	CreateSaleItems(ctx context.Context, items []models.SaleItem) error
	FindSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	FindSaleByIntentID(ctx context.Context, intentID string) (*models.Sale, error)
	FindTransaction(ctx context.Context, txnID uuid.UUID) (*models.Transaction, error)
	FindSaleItems(ctx context.Context, saleID uuid.UUID) ([]models.SaleItem, error)
	FindStalePendingSales(ctx context.Context, cutoff time.Time, limit int) ([]models.Sale, error)
	UpdateSaleStatusIf(ctx context.Context, saleID uuid.UUID, from, to enums.SaleStatus) (bool, error)
	UpdateTransactionStatusIf(ctx context.Context, txnID uuid.UUID, from, to enums.TransactionStatus) (bool, error)
	BindGatewayTxn(ctx context.Context, txnID uuid.UUID, gatewayTxnID string) error
	SetTransactionFailureCode(ctx context.Context, txnID uuid.UUID, code string) error
}
