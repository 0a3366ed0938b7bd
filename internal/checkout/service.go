package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/souqly/souqly-backend/internal/cart"
	"github.com/souqly/souqly-backend/internal/catalog"
	"github.com/souqly/souqly-backend/internal/parties"
	"github.com/souqly/souqly-backend/internal/sales"
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

type intentGateway interface {
	CreateIntent(ctx context.Context, params paymob.IntentCreateParams) (*paymob.Intent, error)
	CheckoutURL(clientSecret string) string
	IframeURL(paymentKey string) string
}

type inventoryReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, productItemID uuid.UUID, qty int) error
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID) (*Result, error)
}

type service struct {
	tx          txRunner
	cartRepo    cart.Repository
	partiesRepo parties.Repository
	catalogRepo catalog.Repository
	salesRepo   sales.Repository
	reserver    inventoryReserver
	gateway     intentGateway
	outbox      outboxPublisher
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	partiesRepo parties.Repository,
	catalogRepo catalog.Repository,
	salesRepo sales.Repository,
	reserver inventoryReserver,
	gateway intentGateway,
	publisher outboxPublisher,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if partiesRepo == nil {
		return nil, fmt.Errorf("parties repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if salesRepo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if reserver == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		cartRepo:    cartRepo,
		partiesRepo: partiesRepo,
		catalogRepo: catalogRepo,
		salesRepo:   salesRepo,
		reserver:    reserver,
		gateway:     gateway,
		outbox:      publisher,
		metrics:     paymentMetrics,
		logg:        logg,
	}, nil
}

// Execute validates the customer's cart, registers a payment intention, and
// persists the pending sale with its stock reservations in one transaction.
// The intent is registered before any database write; an intent whose
// transaction later fails to commit is simply never paid.
func (s *service) Execute(ctx context.Context, userID uuid.UUID) (*Result, error) {
	start := time.Now()
	result, err := s.execute(ctx, userID)
	if err != nil {
		s.metrics.ObserveCheckout("failure", time.Since(start))
		return nil, err
	}
	s.metrics.ObserveCheckout("success", time.Since(start))
	return result, nil
}

func (s *service) execute(ctx context.Context, userID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	user, err := s.partiesRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	customer, err := s.partiesRepo.FindCustomerByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	address, err := s.partiesRepo.FindDefaultAddress(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "default shipping address required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}

	record, err := s.cartRepo.FindByCustomer(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ids := make([]uuid.UUID, len(record.Items))
	qtyByItem := make(map[uuid.UUID]int, len(record.Items))
	for i, item := range record.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item quantity must be positive")
		}
		ids[i] = item.ProductItemID
		qtyByItem[item.ProductItemID] = item.Quantity
	}

	listings, err := s.catalogRepo.FindItemsWithVendor(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product items")
	}
	if len(listings) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product item not found")
	}

	vendorID := listings[0].VendorID
	total := decimal.Zero
	lineItems := make([]paymob.LineItem, 0, len(listings))
	saleItems := make([]models.SaleItem, 0, len(listings))
	for _, listing := range listings {
		if listing.VendorID != vendorID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart spans multiple vendors")
		}
		qty := qtyByItem[listing.Item.ID]
		if listing.Item.Quantity < qty {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
				WithDetails(map[string]any{
					"product_item_id": listing.Item.ID.String(),
					"requested":       qty,
					"available":       listing.Item.Quantity,
				})
		}
		lineTotal := listing.Item.Price.Mul(decimal.NewFromInt(int64(qty)))
		total = total.Add(lineTotal)
		lineItems = append(lineItems, paymob.LineItem{
			Name:        listing.Item.Name,
			AmountCents: types.MinorUnits(listing.Item.Price),
			Quantity:    qty,
		})
		saleItems = append(saleItems, models.SaleItem{
			ProductItemID: listing.Item.ID,
			Name:          listing.Item.Name,
			UnitPrice:     listing.Item.Price,
			Quantity:      qty,
		})
	}

	intent, err := s.gateway.CreateIntent(ctx, paymob.IntentCreateParams{
		AmountCents: types.MinorUnits(total),
		Currency:    string(enums.CurrencyEGP),
		Items:       lineItems,
		Billing: paymob.BillingData{
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			Email:       user.Email,
			PhoneNumber: phoneOf(user, address),
			Street:      address.Line1,
			City:        address.City,
			Country:     address.Country,
		},
	})
	if err != nil {
		return nil, err
	}

	var saleID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		salesRepo := s.salesRepo.WithTx(tx)

		txn, err := salesRepo.CreateTransaction(ctx, &models.Transaction{
			IntentID: intent.ID,
			Status:   enums.TransactionStatusPending,
			Amount:   total,
			Currency: enums.CurrencyEGP,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}

		sale, err := salesRepo.CreateSale(ctx, &models.Sale{
			CustomerID:    customer.ID,
			VendorID:      vendorID,
			AddressID:     address.ID,
			TransactionID: txn.ID,
			Total:         total,
			Currency:      enums.CurrencyEGP,
			Status:        enums.SaleStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
		}
		saleID = sale.ID

		for i := range saleItems {
			saleItems[i].SaleID = sale.ID
		}
		if err := salesRepo.CreateSaleItems(ctx, saleItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale items")
		}

		for _, item := range saleItems {
			if err := s.reserver.Reserve(ctx, tx, item.ProductItemID, item.Quantity); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSaleCreated,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: SaleCreatedEvent{
				SaleID:     sale.ID,
				CustomerID: customer.ID,
				VendorID:   vendorID,
				Total:      total,
				ItemCount:  len(saleItems),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		SaleID:     saleID,
		PaymentURL: s.gateway.CheckoutURL(intent.ClientSecret),
		IframeURL:  s.gateway.IframeURL(intent.PaymentKey),
	}, nil
}

func phoneOf(user *models.User, address *models.Address) string {
	if address.Phone != nil && *address.Phone != "" {
		return *address.Phone
	}
	if user.Phone != nil {
		return *user.Phone
	}
	return ""
}
