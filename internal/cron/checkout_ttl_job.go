package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/internal/sales"
	"github.com/souqly/souqly-backend/pkg/db/models"
	"github.com/souqly/souqly-backend/pkg/enums"
	"github.com/souqly/souqly-backend/pkg/logger"
	"github.com/souqly/souqly-backend/pkg/outbox"
)

const expiredFailureCode = "expired"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type inventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error
}

// CheckoutTTLJobParams configure the stale checkout sweeper.
type CheckoutTTLJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository sales.Repository
	Inventory  inventoryReleaser
	Outbox     outboxEmitter
	PendingTTL time.Duration
	BatchSize  int
}

// NewCheckoutTTLJob builds the job that expires checkouts whose payment never
// arrived, releasing the stock they reserved.
func NewCheckoutTTLJob(params CheckoutTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.PendingTTL <= 0 {
		return nil, fmt.Errorf("pending ttl must be positive")
	}
	return &checkoutTTLJob{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.Repository,
		inventory:  params.Inventory,
		outbox:     params.Outbox,
		pendingTTL: params.PendingTTL,
		batchSize:  params.BatchSize,
		now:        time.Now,
	}, nil
}

type checkoutTTLJob struct {
	logg       *logger.Logger
	db         txRunner
	repo       sales.Repository
	inventory  inventoryReleaser
	outbox     outboxEmitter
	pendingTTL time.Duration
	batchSize  int
	now        func() time.Time
}

func (j *checkoutTTLJob) Name() string { return "checkout-ttl" }

// Run expires each stale sale in its own transaction so one bad row does not
// hold back the rest of the batch.
func (j *checkoutTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	stale, err := j.repo.FindStalePendingSales(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale pending sales: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	expired := 0
	for i := range stale {
		if err := j.expire(ctx, &stale[i]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire sale %s: %w", stale[i].ID, err))
			continue
		}
		expired++
	}

	fields := map[string]any{"candidates": len(stale), "expired": expired}
	j.logg.Info(j.logg.WithFields(ctx, fields), "stale checkout sweep complete")
	return errs
}

func (j *checkoutTTLJob) expire(ctx context.Context, sale *models.Sale) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)

		// Losing this update means a callback or cancellation got there first;
		// that path owns the compensations.
		moved, err := repo.UpdateTransactionStatusIf(ctx, sale.TransactionID, enums.TransactionStatusPending, enums.TransactionStatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}

		if err := repo.SetTransactionFailureCode(ctx, sale.TransactionID, expiredFailureCode); err != nil {
			return err
		}
		if _, err := repo.UpdateSaleStatusIf(ctx, sale.ID, enums.SaleStatusPending, enums.SaleStatusCancelled); err != nil {
			return err
		}

		for _, item := range sale.Items {
			if err := j.inventory.Release(ctx, tx, item.ProductItemID, item.Quantity); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSaleCancelled,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Version:       1,
			Data: sales.SaleCancelledEvent{
				SaleID:     sale.ID,
				CustomerID: sale.CustomerID,
				VendorID:   sale.VendorID,
				Total:      sale.Total,
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}
