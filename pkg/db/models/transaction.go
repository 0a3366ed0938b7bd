package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/souqly/souqly-backend/pkg/enums"
)

// Transaction tracks the payment lifecycle for a sale. IntentID is the
// gateway intention id handed out at checkout; GatewayTxnID is bound when
// the gateway first reports on the intent and is required for refunds.
type Transaction struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IntentID     string                  `gorm:"column:intent_id;not null;uniqueIndex"`
	GatewayTxnID *string                 `gorm:"column:gateway_txn_id"`
	Status       enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending'"`
	Amount       decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency     enums.Currency          `gorm:"column:currency;type:text;not null;default:'EGP'"`
	FailureCode  *string                 `gorm:"column:failure_code"`
	RefundedAt   *time.Time              `gorm:"column:refunded_at"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
