package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/outbox"
	"github.com/zazmarga/online-cinema/pkg/outbox/payloads"
)

const consumerName = "notifications"

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

// Dispatcher turns outbox events into notifications.
type Dispatcher struct {
	notifier Notifier
	tracker  processedTracker
	baseURL  string
	logg     *logger.Logger
}

// NewDispatcher wires a dispatcher; tracker may be nil when Redis is not configured.
func NewDispatcher(notifier Notifier, tracker processedTracker, baseURL string, logg *logger.Logger) (*Dispatcher, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{
		notifier: notifier,
		tracker:  tracker,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logg:     logg,
	}, nil
}

// HandleEvent delivers the notification for one resolved outbox event. Event
// types without a notification are acknowledged silently.
func (d *Dispatcher) HandleEvent(ctx context.Context, event *outbox.ResolvedEvent) error {
	if event == nil {
		return outbox.NonRetryableError{Err: fmt.Errorf("event missing")}
	}
	if event.Row.EventType != enums.EventPaymentConfirmed {
		return nil
	}
	payload, ok := event.Payload.(*payloads.PaymentConfirmedEvent)
	if !ok || payload == nil {
		return outbox.NonRetryableError{Err: fmt.Errorf("unexpected payload %T", event.Payload)}
	}

	logCtx := d.logg.WithOrderID(d.logg.WithField(ctx, "event_id", event.Envelope.EventID), payload.OrderID.String())
	if strings.TrimSpace(payload.CustomerEmail) == "" {
		d.logg.Warn(logCtx, "notification skipped: no customer email")
		return nil
	}

	if d.tracker != nil {
		already, err := d.tracker.CheckAndMarkProcessed(ctx, consumerName, event.Envelope.EventID)
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if already {
			d.logg.Info(logCtx, "notification already sent")
			return nil
		}
	}

	link := d.OrderLink(payload)
	message := fmt.Sprintf("Your payment of %s %s for order %s was successful. View your order:",
		payload.Amount.StringFixed(2), strings.ToUpper(payload.Currency), payload.OrderID)
	if err := d.notifier.SendPaymentConfirmation(ctx, payload.CustomerEmail, link, message); err != nil {
		if d.tracker != nil {
			_ = d.tracker.Delete(ctx, consumerName, event.Envelope.EventID)
		}
		return err
	}
	d.logg.Info(logCtx, "payment confirmation sent")
	return nil
}

// OrderLink points the user at the order detail endpoint.
func (d *Dispatcher) OrderLink(payload *payloads.PaymentConfirmedEvent) string {
	return fmt.Sprintf("%s/api/v1/orders/%s", d.baseURL, payload.OrderID)
}
