package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/internal/cart"
	"github.com/zazmarga/online-cinema/internal/catalog"
	"github.com/zazmarga/online-cinema/internal/ledger"
	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/enums"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the order state machine and its read projections.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID) (*CreateOrderResult, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error
	TransitionToPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ListMyOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	GetMyOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ListAllOrders(ctx context.Context, params AdminListParams) (*OrderList, error)
}

// ServiceParams carries the order service dependencies.
type ServiceParams struct {
	Repo    Repository
	Carts   cart.CartRepository
	Catalog catalog.Repository
	Ledger  ledger.Service
	Tx      txRunner
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	carts   cart.CartRepository
	catalog catalog.Repository
	ledger  ledger.Service
	tx      txRunner
	logg    *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:    params.Repo,
		carts:   params.Carts,
		catalog: params.Catalog,
		ledger:  params.Ledger,
		tx:      params.Tx,
		logg:    logg,
	}, nil
}

// CreateOrder converts the user's cart into a pending order. Items that no
// longer exist, are already owned, or are held by another non-canceled order
// are dropped and reported in the message. The cart is always drained, and
// everything happens in one transaction.
func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID) (*CreateOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *CreateOrderResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		userCart, err := carts.FindByUserForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		if userCart == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, MessageEmptyCart)
		}
		items, err := carts.ListItems(ctx, userCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, MessageEmptyCart)
		}

		movieIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			movieIDs = append(movieIDs, item.MovieID)
		}
		movies, err := s.catalog.WithTx(tx).GetMovies(ctx, movieIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movies")
		}
		owned, err := s.ledger.WithTx(tx).PurchasedMovieIDs(ctx, userID, movieIDs)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		heldIDs, err := repo.ActiveMovieIDs(ctx, userID, movieIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open orders")
		}
		held := make(map[uuid.UUID]bool, len(heldIDs))
		for _, id := range heldIDs {
			held[id] = true
		}

		var message strings.Builder
		order := &models.Order{
			UserID:      userID,
			Status:      enums.OrderStatusPending,
			TotalAmount: decimal.Zero,
		}
		for _, item := range items {
			movie, exists := movies[item.MovieID]
			if !exists || owned[item.MovieID] || held[item.MovieID] {
				message.WriteString(droppedItemMessage(item.MovieID))
				continue
			}
			order.Items = append(order.Items, models.OrderItem{
				MovieID:      movie.ID,
				PriceAtOrder: movie.Price,
			})
			order.TotalAmount = order.TotalAmount.Add(movie.Price)
		}

		drained := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			drained = append(drained, item.ID)
		}
		if _, err := carts.DeleteItemsByID(ctx, userCart.ID, drained); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drain cart")
		}

		if len(order.Items) == 0 {
			message.WriteString(MessageOrderNotCreated)
			result = &CreateOrderResult{Message: message.String()}
			return nil
		}

		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		message.WriteString(MessageOrderCreated)
		orderID := order.ID
		result = &CreateOrderResult{Message: message.String(), OrderID: &orderID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "order_created": result.OrderID != nil})
	if result.OrderID != nil {
		logCtx = s.logg.WithOrderID(logCtx, result.OrderID.String())
	}
	s.logg.Info(logCtx, "order.create")
	return result, nil
}

// CancelOrder moves a pending order owned by the user to canceled. Missing,
// foreign and finalized orders are reported identically.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil || order.UserID != userID || order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeNotFound, MessageOrderNotCancelable)
		}
		return s.transition(ctx, repo, order.ID, enums.OrderStatusPending, enums.OrderStatusCanceled)
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order.canceled")
	return nil
}

// TransitionToPaid runs inside the caller's transaction.
func (s *service) TransitionToPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	return s.transition(ctx, s.repo.WithTx(tx), orderID, enums.OrderStatusPending, enums.OrderStatusPaid)
}

func (s *service) transition(ctx context.Context, repo Repository, orderID uuid.UUID, from, to enums.OrderStatus) error {
	if !from.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to %s", from, to))
	}
	affected, err := repo.TransitionStatus(ctx, orderID, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer pending")
	}
	return nil
}

func (s *service) ListMyOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateCursor(params.Cursor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) GetMyOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.Detail(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, MessageOrderNotFound)
	}
	return order, nil
}

func (s *service) ListAllOrders(ctx context.Context, params AdminListParams) (*OrderList, error) {
	if params.DateFrom != nil && params.DateTo != nil && params.DateTo.Before(*params.DateFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_to must not be before date_from")
	}
	for _, status := range params.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", status))
		}
	}
	if err := validateCursor(params.Cursor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func validateCursor(raw string) error {
	if _, err := pagination.ParseCursor(raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}
