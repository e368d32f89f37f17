package stripewebhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/zazmarga/online-cinema/pkg/stripe"
)

var errMissingMetadata = errors.New("checkout session metadata missing user or order")

// completion is the part of a Checkout Session the reconciliation needs.
type completion struct {
	SessionID         string
	ExternalPaymentID string
	UserID            uuid.UUID
	OrderID           uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	CustomerEmail     string
	CustomerName      string
	PaymentStatus     stripe.CheckoutSessionPaymentStatus
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	if event == nil || event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, errors.New("event data missing")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if session.ID == "" {
		return nil, errors.New("checkout session id missing")
	}
	return &session, nil
}

// completionFrom extracts identifiers and amounts. The payment intent id is
// the unique payment identifier; sessions without one fall back to their own id.
func completionFrom(session *stripe.CheckoutSession) (*completion, error) {
	out := &completion{
		SessionID:         session.ID,
		ExternalPaymentID: session.ID,
		Amount:            pkgstripe.FromMinorUnits(session.AmountTotal),
		Currency:          strings.ToLower(string(session.Currency)),
		CustomerEmail:     session.CustomerEmail,
		PaymentStatus:     session.PaymentStatus,
	}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		out.ExternalPaymentID = session.PaymentIntent.ID
	}
	if details := session.CustomerDetails; details != nil {
		if details.Email != "" {
			out.CustomerEmail = details.Email
		}
		out.CustomerName = details.Name
	}

	userID, userErr := uuid.Parse(session.Metadata[pkgstripe.MetadataUserID])
	orderID, orderErr := uuid.Parse(session.Metadata[pkgstripe.MetadataOrderID])
	if userErr != nil || orderErr != nil {
		return out, errMissingMetadata
	}
	out.UserID = userID
	out.OrderID = orderID
	return out, nil
}
