package callbacks

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/internal/sales"
	"github.com/souqly/souqly-backend/pkg/db/models"
	"github.com/souqly/souqly-backend/pkg/enums"
	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
	"github.com/souqly/souqly-backend/pkg/logger"
	"github.com/souqly/souqly-backend/pkg/metrics"
	"github.com/souqly/souqly-backend/pkg/outbox"
	"github.com/souqly/souqly-backend/pkg/paymob"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type signatureVerifier interface {
	VerifySignature(fields paymob.TransactionHMACFields, signature string) bool
}

type inventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error
}

type balanceCrediter interface {
	Credit(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, gross decimal.Decimal) (decimal.Decimal, error)
}

type cartClearer interface {
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

// Service applies gateway payment outcomes to sales.
type Service interface {
	HandleTransaction(ctx context.Context, payload TransactionCallback, signature string) error
}

type service struct {
	tx        txRunner
	repo      sales.Repository
	verifier  signatureVerifier
	inventory inventoryReleaser
	balances  balanceCrediter
	carts     cartClearer
	outbox    outboxPublisher
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
}

// NewService builds the callback processor.
func NewService(
	tx txRunner,
	repo sales.Repository,
	verifier signatureVerifier,
	inventory inventoryReleaser,
	balances balanceCrediter,
	carts cartClearer,
	publisher outboxPublisher,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance crediter required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		verifier:  verifier,
		inventory: inventory,
		balances:  balances,
		carts:     carts,
		outbox:    publisher,
		metrics:   paymentMetrics,
		logg:      logg,
	}, nil
}

// HandleTransaction verifies and applies a gateway callback. Redeliveries and
// outcomes that already landed resolve to a no-op so the gateway can retry
// freely.
func (s *service) HandleTransaction(ctx context.Context, payload TransactionCallback, signature string) error {
	txn := payload.Body()
	if s.logg != nil && txn.ID != 0 {
		ctx = s.logg.WithField(ctx, "gateway_txn_id", txn.ID)
	}

	if !s.verifier.VerifySignature(txn.hmacFields(), signature) {
		s.metrics.IncCallback("rejected")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid callback signature")
	}

	if txn.Pending {
		s.info(ctx, "callback still pending, ignored")
		return nil
	}
	if txn.IsRefunded || txn.IsVoided {
		// Refunds are issued synchronously from cancellation, which already
		// settled the ledgers. A refund arriving through this path was not
		// requested by us.
		s.metrics.IncCallback("rejected")
		return pkgerrors.New(pkgerrors.CodeValidation, "unsolicited refund callback")
	}

	intentID := payload.IntentionID()
	if intentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "callback missing intention reference")
	}
	gatewayTxnID := strconv.FormatInt(txn.ID, 10)

	var paidCustomerID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sale, err := repo.FindSaleByIntentID(ctx, intentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no sale for intention")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale by intention")
		}
		if sale.Transaction == nil {
			return pkgerrors.New(pkgerrors.CodeDependency, "sale transaction missing")
		}

		if txn.Success {
			applied, err := s.applySuccess(ctx, tx, repo, sale, gatewayTxnID)
			if applied {
				paidCustomerID = sale.CustomerID
			}
			return err
		}
		return s.applyFailure(ctx, tx, repo, sale, gatewayTxnID, failureCode(txn))
	})
	if err != nil {
		return err
	}

	if paidCustomerID != uuid.Nil {
		s.clearCart(ctx, paidCustomerID)
	}
	return nil
}

func (s *service) applySuccess(ctx context.Context, tx *gorm.DB, repo sales.Repository, sale *models.Sale, gatewayTxnID string) (bool, error) {
	moved, err := repo.UpdateTransactionStatusIf(ctx, sale.TransactionID, enums.TransactionStatusPending, enums.TransactionStatusSuccess)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction success")
	}
	if !moved {
		// Redelivery, or the sale was cancelled before the gateway reported.
		s.metrics.IncCallback("duplicate")
		s.info(ctx, "success callback ignored, transaction not pending")
		return false, nil
	}

	// The gateway's own identifier is recorded only once the payment stands.
	if err := repo.BindGatewayTxn(ctx, sale.TransactionID, gatewayTxnID); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind gateway transaction")
	}

	credited, err := s.balances.Credit(ctx, tx, sale.VendorID, sale.Total)
	if err != nil {
		return false, err
	}

	s.metrics.IncCallback("success")

	event := outbox.DomainEvent{
		EventType:     enums.EventSalePaid,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Version:       1,
		Data: SalePaidEvent{
			SaleID:       sale.ID,
			CustomerID:   sale.CustomerID,
			VendorID:     sale.VendorID,
			Total:        sale.Total,
			VendorCredit: credited,
			GatewayTxnID: gatewayTxnID,
		},
	}
	return true, s.outbox.EmitIfNotExists(ctx, tx, event)
}

func (s *service) applyFailure(ctx context.Context, tx *gorm.DB, repo sales.Repository, sale *models.Sale, gatewayTxnID, code string) error {
	moved, err := repo.UpdateTransactionStatusIf(ctx, sale.TransactionID, enums.TransactionStatusPending, enums.TransactionStatusCancelled)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction cancelled")
	}
	if !moved {
		s.metrics.IncCallback("duplicate")
		s.info(ctx, "failure callback ignored, transaction not pending")
		return nil
	}

	if err := repo.SetTransactionFailureCode(ctx, sale.TransactionID, code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failure code")
	}

	// A concurrent cancellation may have flipped the sale already; winning the
	// transaction update above makes the restock below ours either way.
	if _, err := repo.UpdateSaleStatusIf(ctx, sale.ID, enums.SaleStatusPending, enums.SaleStatusCancelled); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel sale")
	}

	for _, item := range sale.Items {
		if err := s.inventory.Release(ctx, tx, item.ProductItemID, item.Quantity); err != nil {
			return err
		}
	}

	s.metrics.IncCallback("failure")

	event := outbox.DomainEvent{
		EventType:     enums.EventSalePaymentFailed,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Version:       1,
		Data: SalePaymentFailedEvent{
			SaleID:       sale.ID,
			CustomerID:   sale.CustomerID,
			VendorID:     sale.VendorID,
			Total:        sale.Total,
			FailureCode:  code,
			GatewayTxnID: gatewayTxnID,
		},
	}
	return s.outbox.EmitIfNotExists(ctx, tx, event)
}

func failureCode(txn CallbackTransaction) string {
	if txn.Data.Message != "" {
		return txn.Data.Message
	}
	if txn.ErrorOccured {
		return "gateway_error"
	}
	return "declined"
}

// clearCart drops the paid-for cart rows. Best-effort: the payment already
// settled, leftovers only mean a stale cart on the next visit.
func (s *service) clearCart(ctx context.Context, customerID uuid.UUID) {
	record, err := s.carts.FindByCustomer(ctx, customerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && s.logg != nil {
			s.logg.Error(ctx, "load cart after payment", err)
		}
		return
	}
	if err := s.carts.Clear(ctx, record.ID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "clear cart after payment", err)
	}
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(ctx, msg)
}
