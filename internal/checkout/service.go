package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/internal/catalog"
	"github.com/zazmarga/online-cinema/internal/orders"
	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/enums"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionCreator opens hosted payment sessions at the payment processor.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req stripe.SessionRequest) (*stripe.Session, error)
}

// Service reconciles a pending order against live prices and hands it to the
// payment processor.
type Service interface {
	ConfirmAndPreparePayment(ctx context.Context, input ConfirmInput) (*CheckoutSession, error)
}

// ServiceParams carries the checkout dependencies.
type ServiceParams struct {
	Orders   orders.Repository
	Catalog  catalog.Repository
	Sessions SessionCreator
	Tx       txRunner
	App      config.AppConfig
	Checkout config.CheckoutConfig
	Logger   *logger.Logger
	// NewNonce is overridable in tests.
	NewNonce func() string
}

type service struct {
	orders   orders.Repository
	catalog  catalog.Repository
	sessions SessionCreator
	tx       txRunner
	baseURL  string
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	newNonce func() string
}

// NewService builds the checkout gateway.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session creator required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	nonce := params.NewNonce
	if nonce == nil {
		nonce = uuid.NewString
	}
	return &service{
		orders:   params.Orders,
		catalog:  params.Catalog,
		sessions: params.Sessions,
		tx:       params.Tx,
		baseURL:  strings.TrimRight(params.App.BaseURL, "/"),
		cfg:      params.Checkout,
		logg:     logg,
		newNonce: nonce,
	}, nil
}

// ConfirmAndPreparePayment re-stamps every item of a pending order with the
// current catalog price, persists the new total and opens a Checkout Session
// for it. A movie that left the catalog keeps its last frozen price.
func (s *service) ConfirmAndPreparePayment(ctx context.Context, input ConfirmInput) (*CheckoutSession, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		lines []pricedLine
		total decimal.Decimal
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order == nil || order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, orders.MessageOrderNotFound)
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, MessageOrderFinalized)
		}

		items, err := repo.ListItems(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		movieIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			movieIDs = append(movieIDs, item.MovieID)
		}
		movies, err := s.catalog.WithTx(tx).GetMovies(ctx, movieIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movies")
		}
		if len(movies) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, MessageNoPayableItems)
		}

		prices := make(map[uuid.UUID]decimal.Decimal, len(items))
		total = decimal.Zero
		lines = lines[:0]
		for _, item := range items {
			price := item.PriceAtOrder
			name := "Movie " + item.MovieID.String()
			if movie, ok := movies[item.MovieID]; ok {
				price = movie.Price
				name = movie.Name
				prices[item.ID] = price
			}
			total = total.Add(price)
			lines = append(lines, pricedLine{name: name, amount: price})
		}

		if err := repo.RestampPendingPrices(ctx, order.ID, prices, total); err != nil {
			if errors.Is(err, orders.ErrNotPending) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, MessageOrderFinalized)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reprice order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	nonce := s.newNonce()
	orderID := input.OrderID.String()
	req := stripe.SessionRequest{
		OrderID:        orderID,
		UserID:         input.UserID.String(),
		Nonce:          nonce,
		Currency:       s.cfg.Currency,
		CustomerEmail:  input.CustomerEmail,
		SuccessURL:     s.baseURL + s.cfg.SuccessPath,
		CancelURL:      s.baseURL + s.cfg.CancelPath,
		IdempotencyKey: fmt.Sprintf("checkout:%s:%s", orderID, nonce),
		Items:          make([]stripe.LineItem, 0, len(lines)),
	}
	for _, line := range lines {
		req.Items = append(req.Items, stripe.LineItem{Name: line.name, Amount: line.amount})
	}

	logCtx := s.logg.WithOrderID(ctx, orderID)
	session, err := s.sessions.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logg.Error(logCtx, "checkout.session_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"session_id":   session.ID,
		"total_amount": total.StringFixed(2),
	}), "checkout.session_created")

	return &CheckoutSession{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		Total:       total,
	}, nil
}
