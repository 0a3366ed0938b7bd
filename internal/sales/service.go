package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/pkg/db/models"
	"github.com/souqly/souqly-backend/pkg/enums"
	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
	"github.com/souqly/souqly-backend/pkg/logger"
	"github.com/souqly/souqly-backend/pkg/metrics"
	"github.com/souqly/souqly-backend/pkg/outbox"
	"github.com/souqly/souqly-backend/pkg/paymob"
	"github.com/souqly/souqly-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type refundGateway interface {
	Refund(ctx context.Context, transactionID string, amountCents int64) (*paymob.RefundResult, error)
}

type inventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error
}

type balanceReverser interface {
	Reverse(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, gross decimal.Decimal) (decimal.Decimal, error)
}

type partyResolver interface {
	FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
	FindVendorByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error)
}

// Service defines sale-level operations beyond repository reads.
type Service interface {
	GetSale(ctx context.Context, input GetSaleInput) (*SaleDetail, error)
	Cancel(ctx context.Context, input CancelInput) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	gateway   refundGateway
	inventory inventoryReleaser
	balances  balanceReverser
	parties   partyResolver
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
}

// NewService builds a sales service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	gateway refundGateway,
	inventory inventoryReleaser,
	balances balanceReverser,
	parties partyResolver,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("refund gateway required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance reverser required")
	}
	if parties == nil {
		return nil, fmt.Errorf("party resolver required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		gateway:   gateway,
		inventory: inventory,
		balances:  balances,
		parties:   parties,
		metrics:   paymentMetrics,
		logg:      logg,
	}, nil
}

func (s *service) GetSale(ctx context.Context, input GetSaleInput) (*SaleDetail, error) {
	if input.SaleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	sale, err := s.repo.FindSale(ctx, input.SaleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}

	if err := s.authorize(ctx, sale, input.ActorUserID, input.ActorRole); err != nil {
		return nil, err
	}

	detail := &SaleDetail{
		ID:          sale.ID,
		Status:      sale.Status,
		Total:       sale.Total,
		Currency:    sale.Currency,
		CreatedAt:   sale.CreatedAt,
		CancelledAt: sale.CancelledAt,
	}
	if sale.Transaction != nil {
		detail.TransactionStatus = sale.Transaction.Status
	}
	for _, item := range sale.Items {
		detail.Items = append(detail.Items, SaleItemDetail{
			ProductItemID: item.ProductItemID,
			Name:          item.Name,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
		})
	}
	return detail, nil
}

// Cancel flips a pending sale to cancelled and compensates: restocks reserved
// units, and when the payment already settled, refunds through the gateway and
// claws back the vendor credit. The gateway call runs inside the database
// transaction so a declined refund rolls the whole cancellation back.
func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.SaleID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sale, err := repo.FindSale(ctx, input.SaleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
		}

		if err := s.authorize(ctx, sale, input.ActorUserID, input.ActorRole); err != nil {
			return err
		}

		// Shoppers can back out only before the payment lands. Once it
		// settles, cancelling means a refund, and that stays with the vendor
		// or an admin.
		if input.ActorRole == enums.UserRoleCustomer && sale.Transaction != nil {
			switch sale.Transaction.Status {
			case enums.TransactionStatusSuccess, enums.TransactionStatusRefunded:
				return pkgerrors.New(pkgerrors.CodeForbidden, "paid sales can only be cancelled by the vendor")
			}
		}

		if sale.Status != enums.SaleStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sale already cancelled")
		}

		txn, err := repo.FindTransaction(ctx, sale.TransactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)}

		// Status rows are updated transaction first, then sale, the same
		// order the callback and expiry paths take.
		switch txn.Status {
		case enums.TransactionStatusPending:
			moved, err := repo.UpdateTransactionStatusIf(ctx, txn.ID, enums.TransactionStatusPending, enums.TransactionStatusCancelled)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel transaction")
			}
			if !moved {
				// The gateway reported between our read and the update.
				reloaded, reloadErr := repo.FindTransaction(ctx, txn.ID)
				if reloadErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, reloadErr, "reload transaction")
				}
				if reloaded.Status == enums.TransactionStatusSuccess {
					if input.ActorRole == enums.UserRoleCustomer {
						return pkgerrors.New(pkgerrors.CodeStateConflict, "payment completed during cancellation")
					}
					return s.cancelPaid(ctx, tx, repo, sale, reloaded, actor)
				}
				// A failure callback or the expiry sweeper won; it owns the
				// restock and already flipped the sale.
				return pkgerrors.New(pkgerrors.CodeStateConflict, "sale already cancelled")
			}
			if err := s.cancelSale(ctx, repo, sale.ID); err != nil {
				return err
			}
			if err := s.restock(ctx, tx, sale.Items); err != nil {
				return err
			}
			return s.emitCancelled(ctx, tx, sale, actor, input.Reason)

		case enums.TransactionStatusSuccess:
			if input.ActorRole == enums.UserRoleCustomer {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment completed during cancellation")
			}
			return s.cancelPaid(ctx, tx, repo, sale, txn, actor)

		case enums.TransactionStatusCancelled:
			// Payment already failed; the webhook restocked on failure.
			if err := s.cancelSale(ctx, repo, sale.ID); err != nil {
				return err
			}
			return s.emitCancelled(ctx, tx, sale, actor, input.Reason)

		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction already refunded")
		}
	})
}

func (s *service) cancelPaid(ctx context.Context, tx *gorm.DB, repo Repository, sale *models.Sale, txn *models.Transaction, actor *outbox.ActorRef) error {
	if txn.GatewayTxnID == nil || *txn.GatewayTxnID == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway transaction id missing, cannot refund")
	}

	result, err := s.gateway.Refund(ctx, *txn.GatewayTxnID, types.MinorUnits(sale.Total))
	if err != nil {
		s.metrics.IncRefund("failure")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund payment")
	}
	if result != nil && !result.Success {
		s.metrics.IncRefund("failure")
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway declined refund")
	}

	moved, err := repo.UpdateTransactionStatusIf(ctx, txn.ID, enums.TransactionStatusSuccess, enums.TransactionStatusRefunded)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction refunded")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transaction changed during refund")
	}

	if err := s.cancelSale(ctx, repo, sale.ID); err != nil {
		return err
	}

	reversed, err := s.balances.Reverse(ctx, tx, sale.VendorID, sale.Total)
	if err != nil {
		return err
	}

	if err := s.restock(ctx, tx, sale.Items); err != nil {
		return err
	}

	s.metrics.IncRefund("success")

	event := outbox.DomainEvent{
		EventType:     enums.EventSaleRefunded,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Version:       1,
		Actor:         actor,
		Data: SaleRefundedEvent{
			SaleID:         sale.ID,
			CustomerID:     sale.CustomerID,
			VendorID:       sale.VendorID,
			Total:          sale.Total,
			ReversedCredit: reversed,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) emitCancelled(ctx context.Context, tx *gorm.DB, sale *models.Sale, actor *outbox.ActorRef, reason string) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventSaleCancelled,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		Version:       1,
		Actor:         actor,
		Data: SaleCancelledEvent{
			SaleID:     sale.ID,
			CustomerID: sale.CustomerID,
			VendorID:   sale.VendorID,
			Total:      sale.Total,
			Reason:     reason,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) cancelSale(ctx context.Context, repo Repository, saleID uuid.UUID) error {
	won, err := repo.UpdateSaleStatusIf(ctx, saleID, enums.SaleStatusPending, enums.SaleStatusCancelled)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel sale")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sale already cancelled")
	}
	return nil
}

func (s *service) restock(ctx context.Context, tx *gorm.DB, items []models.SaleItem) error {
	for _, item := range items {
		if err := s.inventory.Release(ctx, tx, item.ProductItemID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) authorize(ctx context.Context, sale *models.Sale, actorUserID uuid.UUID, role enums.UserRole) error {
	switch role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleCustomer:
		customer, err := s.parties.FindCustomerByUserID(ctx, actorUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "sale does not belong to customer")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer")
		}
		if customer.ID != sale.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sale does not belong to customer")
		}
		return nil
	case enums.UserRoleVendor:
		vendor, err := s.parties.FindVendorByUserID(ctx, actorUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "sale does not belong to vendor")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve vendor")
		}
		if vendor.ID != sale.VendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sale does not belong to vendor")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed")
	}
}
