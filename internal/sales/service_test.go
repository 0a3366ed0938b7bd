package sales

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/pkg/db/models"
	"github.com/souqly/souqly-backend/pkg/enums"
	pkgerrors "github.com/souqly/souqly-backend/pkg/errors"
	"github.com/souqly/souqly-backend/pkg/outbox"
	"github.com/souqly/souqly-backend/pkg/paymob"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepo struct {
	sale        *models.Sale
	txn         *models.Transaction
	reloaded    *models.Transaction
	saleCAS     bool
	txnCAS      []bool
	txnCASCalls []enums.TransactionStatus
	updates     []string
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	return nil, nil
}

func (f *fakeRepo) CreateSale(ctx context.Context, sale *models.Sale) (*models.Sale, error) {
	return nil, nil
}

func (f *fakeRepo) CreateSaleItems(ctx context.Context, items []models.SaleItem) error { return nil }

func (f *fakeRepo) FindSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	if f.sale == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.sale, nil
}

func (f *fakeRepo) FindSaleByIntentID(ctx context.Context, intentID string) (*models.Sale, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindTransaction(ctx context.Context, txnID uuid.UUID) (*models.Transaction, error) {
	if f.reloaded != nil && len(f.txnCASCalls) > 0 {
		return f.reloaded, nil
	}
	if f.txn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.txn, nil
}

func (f *fakeRepo) FindSaleItems(ctx context.Context, saleID uuid.UUID) ([]models.SaleItem, error) {
	return nil, nil
}

func (f *fakeRepo) FindStalePendingSales(ctx context.Context, cutoff time.Time, limit int) ([]models.Sale, error) {
	return nil, nil
}

func (f *fakeRepo) UpdateSaleStatusIf(ctx context.Context, saleID uuid.UUID, from, to enums.SaleStatus) (bool, error) {
	f.updates = append(f.updates, "sale")
	return f.saleCAS, nil
}

func (f *fakeRepo) UpdateTransactionStatusIf(ctx context.Context, txnID uuid.UUID, from, to enums.TransactionStatus) (bool, error) {
	f.updates = append(f.updates, "transaction")
	f.txnCASCalls = append(f.txnCASCalls, to)
	if len(f.txnCAS) == 0 {
		return true, nil
	}
	result := f.txnCAS[0]
	f.txnCAS = f.txnCAS[1:]
	return result, nil
}

func (f *fakeRepo) BindGatewayTxn(ctx context.Context, txnID uuid.UUID, gatewayTxnID string) error {
	return nil
}

func (f *fakeRepo) SetTransactionFailureCode(ctx context.Context, txnID uuid.UUID, code string) error {
	return nil
}

type fakePublisher struct {
	events []outbox.DomainEvent
}

func (f *fakePublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeRefundGateway struct {
	calls       int
	txnID       string
	amountCents int64
	err         error
}

func (f *fakeRefundGateway) Refund(ctx context.Context, transactionID string, amountCents int64) (*paymob.RefundResult, error) {
	f.calls++
	f.txnID = transactionID
	f.amountCents = amountCents
	if f.err != nil {
		return nil, f.err
	}
	return &paymob.RefundResult{TransactionID: "rf_1", Success: true}, nil
}

type fakeReleaser struct {
	released map[uuid.UUID]int
}

func (f *fakeReleaser) Release(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error {
	if f.released == nil {
		f.released = map[uuid.UUID]int{}
	}
	f.released[productItemID] += qty
	return nil
}

type fakeReverser struct {
	calls    int
	vendorID uuid.UUID
	gross    decimal.Decimal
	err      error
}

func (f *fakeReverser) Reverse(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, gross decimal.Decimal) (decimal.Decimal, error) {
	f.calls++
	f.vendorID = vendorID
	f.gross = gross
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return gross.Sub(gross.Mul(decimal.RequireFromString("0.05"))).Round(2), nil
}

type fakeParties struct {
	customer *models.Customer
	vendor   *models.Vendor
}

func (f *fakeParties) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	if f.customer == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.customer, nil
}

func (f *fakeParties) FindVendorByUserID(ctx context.Context, userID uuid.UUID) (*models.Vendor, error) {
	if f.vendor == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.vendor, nil
}

type fixture struct {
	repo       *fakeRepo
	outbox     *fakePublisher
	gateway    *fakeRefundGateway
	releaser   *fakeReleaser
	reverser   *fakeReverser
	parties    *fakeParties
	saleID     uuid.UUID
	customerID uuid.UUID
	vendorID   uuid.UUID
	itemID     uuid.UUID
	ownerID    uuid.UUID
}

func newFixture() *fixture {
	saleID := uuid.New()
	customerID := uuid.New()
	vendorID := uuid.New()
	itemID := uuid.New()
	txnID := uuid.New()
	ownerID := uuid.New()

	txn := &models.Transaction{
		ID:       txnID,
		IntentID: "pi_123",
		Status:   enums.TransactionStatusPending,
		Amount:   decimal.RequireFromString("200.00"),
	}

	return &fixture{
		repo: &fakeRepo{
			sale: &models.Sale{
				ID:            saleID,
				CustomerID:    customerID,
				VendorID:      vendorID,
				TransactionID: txnID,
				Total:         decimal.RequireFromString("200.00"),
				Status:        enums.SaleStatusPending,
				Items: []models.SaleItem{
					{SaleID: saleID, ProductItemID: itemID, Name: "Ceramic Mug", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 2},
				},
				Transaction: txn,
			},
			txn:     txn,
			saleCAS: true,
		},
		outbox:     &fakePublisher{},
		gateway:    &fakeRefundGateway{},
		releaser:   &fakeReleaser{},
		reverser:   &fakeReverser{},
		parties:    &fakeParties{customer: &models.Customer{ID: customerID, UserID: ownerID}},
		saleID:     saleID,
		customerID: customerID,
		vendorID:   vendorID,
		itemID:     itemID,
		ownerID:    ownerID,
	}
}

func (f *fixture) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(f.repo, fakeTx{}, f.outbox, f.gateway, f.releaser, f.reverser, f.parties, nil, nil)
	require.NoError(t, err)
	return svc
}

func (f *fixture) cancelAsOwner() CancelInput {
	return CancelInput{SaleID: f.saleID, ActorUserID: f.ownerID, ActorRole: enums.UserRoleCustomer}
}

func (f *fixture) cancelAsVendor() CancelInput {
	vendorUserID := uuid.New()
	f.parties.vendor = &models.Vendor{ID: f.vendorID, UserID: vendorUserID}
	return CancelInput{SaleID: f.saleID, ActorUserID: vendorUserID, ActorRole: enums.UserRoleVendor}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr, "expected typed error, got %v", err)
	assert.Equal(t, code, appErr.Code())
}

func TestGetSaleReturnsDetail(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	detail, err := svc.GetSale(context.Background(), GetSaleInput{
		SaleID:      f.saleID,
		ActorUserID: f.ownerID,
		ActorRole:   enums.UserRoleCustomer,
	})
	require.NoError(t, err)

	assert.Equal(t, f.saleID, detail.ID)
	assert.Equal(t, enums.SaleStatusPending, detail.Status)
	assert.Equal(t, enums.TransactionStatusPending, detail.TransactionStatus)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Ceramic Mug", detail.Items[0].Name)
	assert.Equal(t, 2, detail.Items[0].Quantity)
}

func TestGetSaleNotFound(t *testing.T) {
	f := newFixture()
	f.repo.sale = nil
	svc := f.service(t)

	_, err := svc.GetSale(context.Background(), GetSaleInput{
		SaleID:      uuid.New(),
		ActorUserID: f.ownerID,
		ActorRole:   enums.UserRoleCustomer,
	})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetSaleForbiddenForStranger(t *testing.T) {
	f := newFixture()
	f.parties.customer = &models.Customer{ID: uuid.New(), UserID: uuid.New()}
	svc := f.service(t)

	_, err := svc.GetSale(context.Background(), GetSaleInput{
		SaleID:      f.saleID,
		ActorUserID: uuid.New(),
		ActorRole:   enums.UserRoleCustomer,
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCancelUnpaidSale(t *testing.T) {
	f := newFixture()
	svc := f.service(t)

	input := f.cancelAsOwner()
	input.Reason = "changed my mind"
	err := svc.Cancel(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, f.repo.txnCASCalls, 1)
	assert.Equal(t, enums.TransactionStatusCancelled, f.repo.txnCASCalls[0])
	assert.Equal(t, 2, f.releaser.released[f.itemID])
	assert.Zero(t, f.gateway.calls)
	assert.Zero(t, f.reverser.calls)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventSaleCancelled, f.outbox.events[0].EventType)
	data, ok := f.outbox.events[0].Data.(SaleCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, "changed my mind", data.Reason)

	// The transaction row is always taken before the sale row, the same
	// order the callback and expiry paths use.
	assert.Equal(t, []string{"transaction", "sale"}, f.repo.updates)
}

func TestCancelPaidSaleRefunds(t *testing.T) {
	f := newFixture()
	gwID := "987654"
	f.repo.txn.Status = enums.TransactionStatusSuccess
	f.repo.txn.GatewayTxnID = &gwID
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsVendor())
	require.NoError(t, err)

	assert.Equal(t, 1, f.gateway.calls)
	assert.Equal(t, gwID, f.gateway.txnID)
	assert.Equal(t, int64(20000), f.gateway.amountCents)

	require.Len(t, f.repo.txnCASCalls, 1)
	assert.Equal(t, enums.TransactionStatusRefunded, f.repo.txnCASCalls[0])

	assert.Equal(t, 1, f.reverser.calls)
	assert.Equal(t, f.vendorID, f.reverser.vendorID)
	assert.True(t, f.reverser.gross.Equal(decimal.RequireFromString("200.00")))
	assert.Equal(t, 2, f.releaser.released[f.itemID])

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventSaleRefunded, f.outbox.events[0].EventType)
	data, ok := f.outbox.events[0].Data.(SaleRefundedEvent)
	require.True(t, ok)
	assert.True(t, data.ReversedCredit.Equal(decimal.RequireFromString("190.00")))
}

func TestCancelPaidSaleRefundDeclined(t *testing.T) {
	f := newFixture()
	gwID := "987654"
	f.repo.txn.Status = enums.TransactionStatusSuccess
	f.repo.txn.GatewayTxnID = &gwID
	f.gateway.err = pkgerrors.New(pkgerrors.CodeDependency, "gateway declined refund")
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsVendor())
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Zero(t, f.reverser.calls)
	assert.Empty(t, f.releaser.released)
	assert.Empty(t, f.outbox.events)
}

func TestCancelPaidSaleWithoutGatewayTxn(t *testing.T) {
	f := newFixture()
	f.repo.txn.Status = enums.TransactionStatusSuccess
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsVendor())
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Zero(t, f.gateway.calls)
}

func TestCancelPaidSaleForbiddenForCustomer(t *testing.T) {
	f := newFixture()
	gwID := "987654"
	f.repo.txn.Status = enums.TransactionStatusSuccess
	f.repo.txn.GatewayTxnID = &gwID
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsOwner())
	requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Zero(t, f.gateway.calls)
	assert.Empty(t, f.outbox.events)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	f := newFixture()
	f.repo.sale.Status = enums.SaleStatusCancelled
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsOwner())
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Empty(t, f.repo.updates)
	assert.Empty(t, f.outbox.events)
}

func TestCancelRefundedSale(t *testing.T) {
	f := newFixture()
	f.repo.txn.Status = enums.TransactionStatusRefunded
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsVendor())
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelAfterPaymentFailure(t *testing.T) {
	f := newFixture()
	f.repo.txn.Status = enums.TransactionStatusCancelled
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsOwner())
	require.NoError(t, err)

	// The failure callback already restocked.
	assert.Empty(t, f.releaser.released)
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventSaleCancelled, f.outbox.events[0].EventType)
}

func TestCancelLosesRaceToSuccessCallback(t *testing.T) {
	f := newFixture()
	gwID := "987654"
	f.repo.txnCAS = []bool{false, true}
	f.repo.reloaded = &models.Transaction{
		ID:           f.repo.txn.ID,
		Status:       enums.TransactionStatusSuccess,
		GatewayTxnID: &gwID,
	}
	svc := f.service(t)

	err := svc.Cancel(context.Background(), f.cancelAsVendor())
	require.NoError(t, err)

	assert.Equal(t, 1, f.gateway.calls)
	assert.Equal(t, 1, f.reverser.calls)
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventSaleRefunded, f.outbox.events[0].EventType)
}

func TestCancelLosesRaceToFailureCallback(t *testing.T) {
	f := newFixture()
	f.repo.txnCAS = []bool{false}
	f.repo.reloaded = &models.Transaction{
		ID:     f.repo.txn.ID,
		Status: enums.TransactionStatusCancelled,
	}
	svc := f.service(t)

	// The failure callback won the transaction update; it owns the restock.
	err := svc.Cancel(context.Background(), f.cancelAsOwner())
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Empty(t, f.releaser.released)
	assert.Empty(t, f.outbox.events)
}

func TestCustomerCancelLosesRaceToSuccessCallback(t *testing.T) {
	f := newFixture()
	gwID := "987654"
	f.repo.txnCAS = []bool{false}
	f.repo.reloaded = &models.Transaction{
		ID:           f.repo.txn.ID,
		Status:       enums.TransactionStatusSuccess,
		GatewayTxnID: &gwID,
	}
	svc := f.service(t)

	// The payment landed between the status read and the update; a shopper
	// does not get a refund out of that window.
	err := svc.Cancel(context.Background(), f.cancelAsOwner())
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Zero(t, f.gateway.calls)
	assert.Empty(t, f.outbox.events)
}

func TestCancelAuthorization(t *testing.T) {
	t.Run("admin may cancel any sale", func(t *testing.T) {
		f := newFixture()
		svc := f.service(t)

		err := svc.Cancel(context.Background(), CancelInput{
			SaleID:      f.saleID,
			ActorUserID: uuid.New(),
			ActorRole:   enums.UserRoleAdmin,
		})
		require.NoError(t, err)
	})

	t.Run("vendor may cancel own sale", func(t *testing.T) {
		f := newFixture()
		vendorUserID := uuid.New()
		f.parties.vendor = &models.Vendor{ID: f.vendorID, UserID: vendorUserID}
		svc := f.service(t)

		err := svc.Cancel(context.Background(), CancelInput{
			SaleID:      f.saleID,
			ActorUserID: vendorUserID,
			ActorRole:   enums.UserRoleVendor,
		})
		require.NoError(t, err)
	})

	t.Run("other vendor is forbidden", func(t *testing.T) {
		f := newFixture()
		f.parties.vendor = &models.Vendor{ID: uuid.New(), UserID: uuid.New()}
		svc := f.service(t)

		err := svc.Cancel(context.Background(), CancelInput{
			SaleID:      f.saleID,
			ActorUserID: uuid.New(),
			ActorRole:   enums.UserRoleVendor,
		})
		requireCode(t, err, pkgerrors.CodeForbidden)
	})

	t.Run("other customer is forbidden", func(t *testing.T) {
		f := newFixture()
		f.parties.customer = &models.Customer{ID: uuid.New(), UserID: uuid.New()}
		svc := f.service(t)

		err := svc.Cancel(context.Background(), CancelInput{
			SaleID:      f.saleID,
			ActorUserID: uuid.New(),
			ActorRole:   enums.UserRoleCustomer,
		})
		requireCode(t, err, pkgerrors.CodeForbidden)
	})
}
