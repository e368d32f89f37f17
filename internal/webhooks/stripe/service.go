package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/internal/catalog"
	"github.com/zazmarga/online-cinema/internal/ledger"
	"github.com/zazmarga/online-cinema/internal/orders"
	"github.com/zazmarga/online-cinema/internal/payments"
	"github.com/zazmarga/online-cinema/pkg/db"
	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/enums"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/metrics"
	"github.com/zazmarga/online-cinema/pkg/outbox"
	"github.com/zazmarga/online-cinema/pkg/outbox/payloads"
)

// Outcome classifies how an authenticated event was handled. Every outcome is
// acknowledged to the processor; only errors make it retry.
type Outcome string

const (
	OutcomeProcessed Outcome = metrics.OutcomeProcessed
	OutcomeDuplicate Outcome = metrics.OutcomeDuplicate
	OutcomeIgnored   Outcome = metrics.OutcomeIgnored
	OutcomeRejected  Outcome = metrics.OutcomeRejected
)

var (
	// ErrInvalidSignature means the payload could not be authenticated.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload means the payload was authentic but unreadable.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderTransitioner interface {
	TransitionToPaid(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams carries the webhook processor dependencies.
type ServiceParams struct {
	SigningSecret string
	Payments      payments.Repository
	OrdersRepo    orders.Repository
	Orders        orderTransitioner
	Catalog       catalog.Repository
	Ledger        ledger.Service
	Outbox        outboxEmitter
	Tx            txRunner
	// Guard is optional; without it the payments table alone de-duplicates.
	Guard   EventGuard
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
	// Tolerance overrides the signature timestamp tolerance; zero uses the SDK default.
	Tolerance time.Duration
}

// Service reconciles processor payment events with orders.
type Service struct {
	secret     string
	payments   payments.Repository
	ordersRepo orders.Repository
	orders     orderTransitioner
	catalog    catalog.Repository
	ledger     ledger.Service
	outbox     outboxEmitter
	tx         txRunner
	guard      EventGuard
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
	tolerance  time.Duration
}

// NewService validates the required dependencies and builds the processor.
func NewService(params ServiceParams) (*Service, error) {
	if params.SigningSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook signing secret required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.OrdersRepo == nil || params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders dependencies required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	tolerance := params.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Service{
		secret:     params.SigningSecret,
		payments:   params.Payments,
		ordersRepo: params.OrdersRepo,
		orders:     params.Orders,
		catalog:    params.Catalog,
		ledger:     params.Ledger,
		outbox:     params.Outbox,
		tx:         params.Tx,
		guard:      params.Guard,
		metrics:    params.Metrics,
		logg:       logg,
		tolerance:  tolerance,
	}, nil
}

// HandleWebhook authenticates the raw payload and processes the event. Errors
// wrapping ErrInvalidSignature or ErrInvalidPayload are client errors; any
// other error should be retried by the processor.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := s.constructEvent(payload, signature)
	if err != nil {
		s.metrics.Observe("", metrics.OutcomeRejected, 0)
		return "", err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	if s.guard != nil && event.ID != "" {
		first, err := s.guard.Claim(ctx, event.ID)
		if err != nil {
			// Redis being down must not block payments; the database check still runs.
			s.logg.Warn(ctx, "webhook.guard_unavailable: "+err.Error())
		} else if !first {
			s.logg.Info(ctx, "webhook.duplicate_event")
			s.metrics.Observe(string(event.Type), metrics.OutcomeDuplicate, 0)
			return OutcomeDuplicate, nil
		}
	}

	outcome, err := s.HandleEvent(ctx, event)
	if err != nil && s.guard != nil && event.ID != "" {
		if relErr := s.guard.Release(ctx, event.ID); relErr != nil {
			s.logg.Warn(ctx, "webhook.guard_release_failed: "+relErr.Error())
		}
	}
	return outcome, err
}

func (s *Service) constructEvent(payload []byte, signature string) (*stripe.Event, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: signature header missing", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		Tolerance:                s.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return &event, nil
}

// HandleEvent processes an authenticated event.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	start := time.Now()
	outcome, err := s.handle(ctx, event)
	label := string(outcome)
	if err != nil {
		label = metrics.OutcomeFailed
		if !errors.Is(err, ErrInvalidPayload) {
			s.logg.Error(ctx, "webhook.failed", err)
		}
	}
	eventType := ""
	if event != nil {
		eventType = string(event.Type)
	}
	s.metrics.Observe(eventType, label, time.Since(start))
	return outcome, err
}

func (s *Service) handle(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil {
		return "", fmt.Errorf("%w: event missing", ErrInvalidPayload)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		s.logg.Info(ctx, "webhook.event_ignored")
		return OutcomeIgnored, nil
	}

	session, err := decodeSession(event)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		// Delayed payment methods complete the session before funds arrive;
		// async_payment_succeeded follows once they do.
		s.logg.Info(ctx, "webhook.session_unpaid")
		return OutcomeIgnored, nil
	}

	paid, err := completionFrom(session)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "session_id", session.ID), "webhook.rejected: "+err.Error())
		return OutcomeRejected, nil
	}
	ctx = s.logg.WithOrderID(s.logg.WithUserID(ctx, paid.UserID.String()), paid.OrderID.String())
	ctx = s.logg.WithField(ctx, "external_payment_id", paid.ExternalPaymentID)

	existing, err := s.payments.FindByExternalID(ctx, paid.ExternalPaymentID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payment")
	}
	if existing != nil {
		s.logg.Info(ctx, "webhook.already_processed")
		return OutcomeDuplicate, nil
	}

	outcome, confirmed, err := s.reconcile(ctx, paid)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			s.logg.Info(ctx, "webhook.concurrent_duplicate")
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	if confirmed != nil {
		s.emitConfirmed(ctx, confirmed)
	}
	return outcome, nil
}

// reconcile marks the order paid, freezes final prices and grants ownership in
// one transaction.
func (s *Service) reconcile(ctx context.Context, paid *completion) (Outcome, *payloads.PaymentConfirmedEvent, error) {
	var (
		outcome   Outcome
		confirmed *payloads.PaymentConfirmedEvent
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		paymentsRepo := s.payments.WithTx(tx)

		order, err := ordersRepo.FindByIDForUpdate(ctx, paid.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order == nil || order.UserID != paid.UserID {
			s.logg.Warn(ctx, "webhook.rejected: order not found for user")
			outcome = OutcomeRejected
			return nil
		}

		existing, err := paymentsRepo.FindByExternalID(ctx, paid.ExternalPaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payment")
		}
		if existing != nil {
			outcome = OutcomeDuplicate
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			s.logg.Warn(s.logg.WithField(ctx, "order_status", string(order.Status)), "webhook.ignored: order not pending")
			outcome = OutcomeIgnored
			return nil
		}

		items, err := ordersRepo.ListItems(ctx, order.ID)
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

		payment := &models.Payment{
			UserID:            paid.UserID,
			OrderID:           order.ID,
			Status:            enums.PaymentStatusSuccessful,
			Amount:            paid.Amount,
			Currency:          paid.Currency,
			ExternalPaymentID: paid.ExternalPaymentID,
			CreatedAt:         time.Now().UTC(),
		}
		if paid.CustomerEmail != "" {
			email := paid.CustomerEmail
			payment.CustomerEmail = &email
		}
		total := decimal.Zero
		for _, item := range items {
			price := item.PriceAtOrder
			if movie, ok := movies[item.MovieID]; ok {
				price = movie.Price
			}
			total = total.Add(price)
			payment.Items = append(payment.Items, models.PaymentItem{
				OrderItemID:    item.ID,
				PriceAtPayment: price,
			})
		}

		inserted, err := paymentsRepo.Insert(ctx, payment)
		if err != nil {
			return err
		}
		if !inserted {
			outcome = OutcomeDuplicate
			return nil
		}

		// price_at_order stays as the audit trail; only the total follows the paid prices.
		if err := ordersRepo.RestampPendingPrices(ctx, order.ID, nil, total); err != nil {
			if errors.Is(err, orders.ErrNotPending) {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order finalized during reconciliation")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute order total")
		}

		if err := s.orders.TransitionToPaid(ctx, tx, order.ID); err != nil {
			return err
		}

		ledgerTx := s.ledger.WithTx(tx)
		orderID := order.ID
		for _, item := range items {
			granted, err := ledgerTx.Grant(ctx, ledger.GrantInput{
				UserID:  paid.UserID,
				MovieID: item.MovieID,
				OrderID: &orderID,
			})
			if err != nil {
				return err
			}
			if !granted {
				s.logg.Warn(s.logg.WithField(ctx, "movie_id", item.MovieID.String()), "webhook.movie_already_owned")
			}
		}

		if !paid.Amount.Equal(total) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"paid_amount":  paid.Amount.StringFixed(2),
				"order_amount": total.StringFixed(2),
			}), "webhook.amount_mismatch")
		}

		outcome = OutcomeProcessed
		confirmed = &payloads.PaymentConfirmedEvent{
			PaymentID:         payment.ID,
			OrderID:           order.ID,
			UserID:            paid.UserID,
			ExternalPaymentID: paid.ExternalPaymentID,
			Amount:            paid.Amount,
			Currency:          paid.Currency,
			CustomerEmail:     paid.CustomerEmail,
			MovieIDs:          movieIDs,
			PaidAt:            payment.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if outcome == OutcomeProcessed {
		s.logg.Info(s.logg.WithField(ctx, "amount", paid.Amount.StringFixed(2)), "webhook.payment_confirmed")
	}
	return outcome, confirmed, nil
}

// emitConfirmed queues the notification in its own transaction. The payment
// is already committed, so failures are only logged.
func (s *Service) emitConfirmed(ctx context.Context, event *payloads.PaymentConfirmedEvent) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   event.OrderID,
			Actor:         &outbox.ActorRef{UserID: event.UserID},
			Data:          event,
			OccurredAt:    event.PaidAt,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "webhook.outbox_emit_failed", err)
	}
}
