package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/pkg/db/models"
	"github.com/souqly/souqly-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) (*models.Sale, error) {
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *repository) CreateSaleItems(ctx context.Context, items []models.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Transaction").
		Where("id = ?", saleID).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) FindSaleByIntentID(ctx context.Context, intentID string) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Transaction").
		Select("sales.*").
		Joins("JOIN transactions ON transactions.id = sales.transaction_id").
		Where("transactions.intent_id = ?", intentID).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) FindTransaction(ctx context.Context, txnID uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", txnID).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindSaleItems(ctx context.Context, saleID uuid.UUID) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindStalePendingSales lists sales whose payment never resolved: both the
// sale and its transaction are still pending past the cutoff.
func (r *repository) FindStalePendingSales(ctx context.Context, cutoff time.Time, limit int) ([]models.Sale, error) {
	var stale []models.Sale
	q := r.db.WithContext(ctx).
		Preload("Items").
		Select("sales.*").
		Joins("JOIN transactions ON transactions.id = sales.transaction_id").
		Where("sales.status = ?", enums.SaleStatusPending).
		Where("transactions.status = ?", enums.TransactionStatusPending).
		Where("sales.created_at < ?", cutoff).
		Order("sales.created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&stale).Error; err != nil {
		return nil, err
	}
	return stale, nil
}

// UpdateSaleStatusIf moves the sale from one status to another only when the
// current status still matches. The affected row count is the winner signal
// when two actors race.
func (r *repository) UpdateSaleStatusIf(ctx context.Context, saleID uuid.UUID, from, to enums.SaleStatus) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to == enums.SaleStatusCancelled {
		updates["cancelled_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&models.Sale{}).
		Where("id = ? AND status = ?", saleID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateTransactionStatusIf(ctx context.Context, txnID uuid.UUID, from, to enums.TransactionStatus) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to == enums.TransactionStatusRefunded {
		updates["refunded_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txnID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// BindGatewayTxn stores the gateway transaction id the first time the gateway
// reports on an intent; later reports must not overwrite it.
func (r *repository) BindGatewayTxn(ctx context.Context, txnID uuid.UUID, gatewayTxnID string) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND gateway_txn_id IS NULL", txnID).
		Update("gateway_txn_id", gatewayTxnID).Error
}

func (r *repository) SetTransactionFailureCode(ctx context.Context, txnID uuid.UUID, code string) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", txnID).
		Update("failure_code", code).Error
}
